package domain

type SendDirectCommand struct {
	SenderID   UserID `validate:"required,excludesall=:"`
	ReceiverID UserID `validate:"required,excludesall=:"`
	Content    string
}

type SendGroupCommand struct {
	SenderID UserID  `validate:"required,excludesall=:"`
	GroupID  GroupID `validate:"required,excludesall=:"`
	Content  string
}

type CreateGroupCommand struct {
	CreatorID   UserID `validate:"required,excludesall=:"`
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=1000"`
}
