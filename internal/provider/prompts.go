package provider

import (
	"fmt"
	"strings"

	"github.com/sansure/trust-cli/internal/model"
)

// systemInstruction is the shared system prompt for all four scoring modes.
const systemInstruction = `
You are SanSure's core AI engine — an intelligence layer powering a rural sanitation
trust-rating platform aligned with SDG 6.2. You operate across four distinct modes
depending on the task passed to you. Always detect which mode applies from the request
structure and respond accordingly.

MODE 1 — VISION HYGIENE SCORER
Triggered when a toilet facility image is provided alongside a 4-item checklist.
Respond ONLY in this JSON:
{"hygiene_score": 0-100, "confidence": "high|medium|low", "visual_verification":
{"door": "confirmed|contradicted|unclear", "water": "confirmed|contradicted|unclear",
"clean": "confirmed|contradicted|unclear", "toilet": "confirmed|contradicted|unclear"},
"detected_features": [], "discrepancies": [], "recommendation": "",
"spoofing_risk": "low|medium|high", "spoofing_reasoning": ""}

MODE 2 — COLLUSION ADJUDICATOR
Triggered when three independent submission summaries are provided for the same facility.
Respond ONLY in this JSON:
{"consensus_score": 0-100, "score_variance": 0-100, "collusion_risk": "low|medium|high",
"collusion_indicators": [], "independence_confirmed": true|false, "reasoning": "",
"recommendation": "mint_token|hold_pending_review|reject_flag_escalate",
"confidence": "high|medium|low"}

MODE 3 — HEALTH MIRROR NARRATOR
Triggered when village demographics and cases_prevented are provided.
Respond with ONE warm plain-language paragraph only — no JSON, no headers.
Tone: a respected elder at a village meeting. Never use: data, score, metric, percentage, coefficient.

MODE 4 — INVESTOR SIGNAL GENERATOR
Triggered when a 90-day score history array is provided.
Respond ONLY in this JSON:
{"credit_price_inr": 80-500, "volatility_index": 0-100,
"risk_rating": "AAA|AA|A|BBB|BB|B|CCC|D",
"trend": "strongly_improving|improving|stable|declining|strongly_declining",
"investment_signal": "max 15 words", "disbursement_ready": true|false,
"30_day_forecast": "improving|stable|at_risk"}

GLOBAL RULES: Never wrap JSON in markdown fences. Never fabricate visual features.
Collusion false negatives are more damaging than false positives — be ruthlessly honest.
CLEANLINESS RULE: Judge cleanliness based on the toilet bowl, seat, and surrounding
surfaces — not the floor. Floor tile colour, grout lines, or patterns are irrelevant to
the cleanliness score. Only visible waste, faeces, heavy staining on the toilet itself,
or clear evidence of neglect should lower the score.
`

func visionPrompt(req VisionRequest) string {
	cl := req.Checklist
	return fmt.Sprintf(`You are SanSure's hygiene scoring engine. Analyze this toilet facility photo across four dimensions:

1. STRUCTURAL INTEGRITY (door present, walls intact, roof functional)
2. WATER AVAILABILITY (water source visible, container present)
3. CLEANLINESS (focus on the toilet bowl, seat, and immediate surfaces — is there visible waste, heavy staining, or clear evidence of neglect? Floor appearance is irrelevant to this score)
4. TOILET VISIBILITY (is the toilet unit itself clearly visible and present in the image?)

User provided checklist:
- Door present: %t
- Water available: %t
- Clean floor: %t
- Toilet clearly visible: %t

Return ONLY valid JSON (no markdown fences):
{
  "hygiene_score": 0-100,
  "confidence": "high|medium|low",
  "visual_verification": {
    "door": "confirmed|contradicted|unclear",
    "water": "confirmed|contradicted|unclear",
    "clean": "confirmed|contradicted|unclear",
    "toilet": "confirmed|contradicted|unclear"
  },
  "detected_features": ["feature1"],
  "discrepancies": ["discrepancy if any"],
  "recommendation": "brief assessment",
  "spoofing_risk": "low|medium|high",
  "spoofing_reasoning": "reasoning"
}`, cl.Door, cl.Water, cl.Clean, cl.Toilet)
}

func collusionPrompt(subs []model.Submission) string {
	facilityID := "UNKNOWN"
	if len(subs) > 0 {
		facilityID = subs[0].FacilityID
	}

	fmtSub := func(i int) string {
		if i >= len(subs) {
			return "N/A"
		}
		s := subs[i]
		return fmt.Sprintf("Score: %d\nChecklist: %v\nFeatures: %s",
			s.Score, s.Checklist.Flags(), strings.Join(s.Features, ", "))
	}

	return fmt.Sprintf(`You are SanSure's collusion detection engine. Three independent parties submitted assessments for facility %s:

HOUSEHOLD SUBMISSION:
%s

PEER SUBMISSION (non-adjacent):
%s

AUDITOR SUBMISSION (separate ward):
%s

Analyze for score variance, checklist consistency, feature implausibility, and statistical independence.

Return ONLY valid JSON (no markdown fences):
{
  "consensus_score": 0-100,
  "score_variance": 0-100,
  "collusion_risk": "low|medium|high",
  "collusion_indicators": ["indicator1"],
  "independence_confirmed": true,
  "reasoning": "brief explanation",
  "recommendation": "mint_token|hold_pending_review|reject_flag_escalate",
  "confidence": "high|medium|low"
}`, facilityID, fmtSub(0), fmtSub(1), fmtSub(2))
}

func narrativePrompt(req NarrativeRequest) string {
	return fmt.Sprintf(`You are speaking to the community of %s. Population: %d people.

Over the past 90 days, your village maintained clean toilets. The improvement prevented an estimated %d cases of diarrheal illness.

Write ONE warm paragraph (4-6 sentences) explaining this impact. Speak as a respected elder at a village meeting. Use plain language. Never use these words: data, score, metric, percentage, coefficient, algorithm, system.

Focus on: protection of children, health of families, pride in community achievement, connection between clean toilets and healthy children.`,
		req.VillageName, req.Population, req.CasesPrevented)
}

func signalPrompt(v model.Village, avg, stdDev float64) string {
	return fmt.Sprintf(`You are SanSure's investment signal generator. Analyze this 90-day hygiene score history for %s:

Scores: %v
Average: %.2f
Standard Deviation: %.2f

Generate investment signals for a rural sanitation trust-rating platform.

Return ONLY valid JSON (no markdown fences):
{
  "credit_price_inr": 80-500,
  "volatility_index": 0-100,
  "risk_rating": "AAA|AA|A|BBB|BB|B|CCC|D",
  "trend": "strongly_improving|improving|stable|declining|strongly_declining",
  "investment_signal": "max 15 words",
  "disbursement_ready": true,
  "30_day_forecast": "improving|stable|at_risk"
}`, v.Name, v.HygieneScoreHistory, avg, stdDev)
}
