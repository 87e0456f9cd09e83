package report

const (
	SuggestNoData    = "No email data found. Run a sync first."
	SuggestCleanup   = "You have over 2,000 emails! Consider cleaning up to reduce your carbon footprint."
	SuggestCrowded   = "Your inbox is crowded. Try deleting or archiving old emails."
	SuggestUnsub     = "Your email footprint exceeds 1 kg CO2. Unsubscribe from unused newsletters!"
	SuggestTraffic   = "Try reducing email traffic to save energy and bandwidth."
	SuggestGreat     = "Great job! Your inbox is clean and eco-friendly."
	SuggestOrganized = "Keep your inbox organized for better digital sustainability."
)

// Suggest picks the first matching rule, checked in order.
func Suggest(s Summary) string {
	switch {
	case s.Total == 0:
		return SuggestNoData
	case s.Inbox > 2000:
		return SuggestCleanup
	case s.Inbox > 1000:
		return SuggestCrowded
	case s.CO2Kg > 1:
		return SuggestUnsub
	case s.EnergyKWh > 0.1:
		return SuggestTraffic
	case s.Inbox < 100:
		return SuggestGreat
	}
	return SuggestOrganized
}
