package conflict

import "Agora/internal/domain/models"

const noDataHint = "No module opinions available; nothing to act on."

type hintKey struct {
	severity    models.Severity
	opportunity models.OpportunityType
}

// Combinations that read differently from their parts.
var hintTable = map[hintKey]string{
	{models.SeverityCritical, models.OpportunityPanicSell}:     "Extreme fear against intact fundamentals. Contrarian entry only, small and staged over several sessions.",
	{models.SeverityHigh, models.OpportunityPanicSell}:         "Sentiment capitulation against solid fundamentals. Scale in on weakness with a tight stop.",
	{models.SeverityCritical, models.OpportunityBottomFishing}: "Price is collapsing while fundamentals hold. Do not catch the knife; wait for a base.",
	{models.SeverityHigh, models.OpportunityBottomFishing}:     "Technicals and fundamentals sharply split. Start a position only after support holds.",
	{models.SeverityCritical, models.OpportunityBubbleWarning}: "Euphoric buying with no fundamental backing and a split council. Exit or hedge longs.",
	{models.SeverityNone, models.OpportunityBubbleWarning}:     "Consensus buy lacks fundamental support. Buy small with a hard stop.",
	{models.SeverityHigh, models.OpportunityTrendReversal}:     "Regime turn likely but unconfirmed. Hedge existing exposure.",
	{models.SeverityCritical, models.OpportunityTrendReversal}: "Timing has flipped hard against the regime. Cut exposure until the new trend confirms.",
}

var opportunityHints = map[models.OpportunityType]string{
	models.OpportunityPanicSell:     "Sentiment is selling what fundamentals still like; watch for a contrarian entry.",
	models.OpportunityBottomFishing: "Price weakness against sound fundamentals; accumulate only on technical confirmation.",
	models.OpportunityBubbleWarning: "Crowded long without fundamental support; tighten stops and avoid adding.",
	models.OpportunityTopExhaustion: "Momentum is running ahead of fair value; take partial profits rather than chase.",
	models.OpportunityTrendReversal: "Timing is fighting the prevailing regime; reduce size until the regime confirms.",
}

var severityHints = map[models.Severity]string{
	models.SeverityNone:     "Modules broadly agree; act on the consensus.",
	models.SeverityLow:      "Minor disagreement; proceed with normal sizing.",
	models.SeverityMedium:   "Meaningful disagreement; reduce position size.",
	models.SeverityHigh:     "Strong disagreement; wait for confirmation before acting.",
	models.SeverityCritical: "Modules are split; stand aside.",
}

// ActionHint returns the fixed guidance for a severity and opportunity pair.
func ActionHint(severity models.Severity, opportunity models.OpportunityType) string {
	if h, ok := hintTable[hintKey{severity, opportunity}]; ok {
		return h
	}
	sev := severityHints[severity]
	if opp, ok := opportunityHints[opportunity]; ok {
		return sev + " " + opp
	}
	return sev
}
