package domain

// Conversation summarizes one direct exchange or one group for its viewer.
// ID is the other user for a direct conversation, the group otherwise.
type Conversation struct {
	Kind        TargetKind
	ID          string
	Name        string
	LastMessage *Message
}

// GroupDetails is a group with its current members.
type GroupDetails struct {
	Group
	Members []UserID
}
