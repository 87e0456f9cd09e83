package email

import (
	"slices"
	"strings"
)

// NotAvailable replaces a header value the provider did not return.
const NotAvailable = "N/A"

const (
	HeaderFrom = "From"
	HeaderTo   = "To"
	HeaderDate = "Date"
)

// MetadataHeaders are the only headers requested per message.
var MetadataHeaders = []string{HeaderFrom, HeaderTo, HeaderDate}

// Classify builds a record from a message's labels and headers. A message
// carrying the SENT label is outbound even when it is also in the inbox.
func Classify(labelIDs []string, headers []Header) MessageRecord {
	direction := Inbound
	counterpart := HeaderFrom
	if slices.Contains(labelIDs, LabelSent) {
		direction = Outbound
		counterpart = HeaderTo
	}

	return MessageRecord{
		CounterpartAddress: HeaderValue(headers, counterpart),
		Date:               HeaderValue(headers, HeaderDate),
		Direction:          direction,
	}
}

// HeaderValue returns the first non-empty value of the named header, or
// NotAvailable.
func HeaderValue(headers []Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) && h.Value != "" {
			return h.Value
		}
	}
	return NotAvailable
}
