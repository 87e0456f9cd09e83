package email

const (
	LabelInbox = "INBOX"
	LabelSent  = "SENT"
)

// Direction of a message relative to the mailbox owner.
type Direction string

const (
	Inbound  Direction = "Inbox"
	Outbound Direction = "Sent"
)

func (d Direction) IsValid() bool {
	switch d {
	case Inbound, Outbound:
		return true
	}
	return false
}

func (d Direction) String() string {
	return string(d)
}
