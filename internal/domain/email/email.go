package email

// Credential is an opaque bearer token for the remote mailbox API.
type Credential struct {
	Value string
}

func (c Credential) IsZero() bool {
	return c.Value == ""
}

// MessageRef is an identifier returned by a label listing.
type MessageRef struct {
	ID string
}

// Page is one listing response.
type Page struct {
	Refs          []MessageRef
	NextPageToken string
}

type Header struct {
	Name  string
	Value string
}

// MessageDetail is the metadata view of a single message. Malformed is set
// when the provider returned no structured header payload.
type MessageDetail struct {
	ID        string
	LabelIDs  []string
	Headers   []Header
	Malformed bool
}

// MessageRecord is the unit stored in the persisted collection. The JSON
// field names are the ones readers of the state already understand.
type MessageRecord struct {
	CounterpartAddress string    `json:"id"`
	Date               string    `json:"date"`
	Direction          Direction `json:"type"`
}
