package graph

// Account identifies whose credentials a call runs with.
type Account struct {
	// Alias identifies a stored account (e.g. "work", "personal").
	Alias    string `json:"alias" description:"account name"`
	TenantID string `json:"-" internal:"true"`
}

type Team struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
	WebURL      string `json:"webUrl,omitempty"`
	IsArchived  bool   `json:"isArchived,omitempty"`
}

type Member struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

type Channel struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description,omitempty"`
	MembershipType string `json:"membershipType,omitempty"`
	WebURL         string `json:"webUrl,omitempty"`
}

type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName,omitempty"`
	GivenName         string `json:"givenName,omitempty"`
	Surname           string `json:"surname,omitempty"`
	Mail              string `json:"mail,omitempty"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
	JobTitle          string `json:"jobTitle,omitempty"`
}

type ChatMessage struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	ContentType string `json:"contentType,omitempty"`
	From        string `json:"from,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	WebURL      string `json:"webUrl,omitempty"`
}

type Chat struct {
	ID       string `json:"id"`
	ChatType string `json:"chatType,omitempty"`
	Topic    string `json:"topic,omitempty"`
	WebURL   string `json:"webUrl,omitempty"`
}

// TeamCreation describes an accepted asynchronous team provisioning request.
type TeamCreation struct {
	TeamID      string `json:"teamId,omitempty"`
	OperationID string `json:"operationId,omitempty"`
	Location    string `json:"location,omitempty"`
}

// UserQuery selects users by exact email/UPN or by name prefixes.
type UserQuery struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

func (q UserQuery) IsZero() bool {
	return q.Email == "" && q.FirstName == "" && q.LastName == ""
}

type TeamSpec struct {
	DisplayName string
	Description string
	Visibility  string // private (default) or public
}

// MessageBody is the content of a channel or chat message; ContentType is text (default) or html.
type MessageBody struct {
	Content     string
	ContentType string
}

type ChatSpec struct {
	// ChatType is oneOnOne (default for two members) or group.
	ChatType  string
	Topic     string
	MemberIDs []string
}
