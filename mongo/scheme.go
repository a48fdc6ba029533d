package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ObjectID = primitive.ObjectID

const RoleAdmin = "admin"

type User struct {
	ID    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name  string             `json:"name" bson:"name"`
	Email string             `json:"email" bson:"email"`
	Phone string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Role  string             `json:"role" bson:"role"`
}

type PollStatus string

const (
	PollDraft    PollStatus = "draft"
	PollActive   PollStatus = "active"
	PollClosed   PollStatus = "closed"
	PollArchived PollStatus = "archived"
)

type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionText     QuestionType = "text"
)

type Poll struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Questions   []Question         `json:"questions" bson:"questions"`
	Responses   []Response         `json:"responses" bson:"responses"`
	Status      PollStatus         `json:"status" bson:"status"`
	StartDate   time.Time          `json:"startDate" bson:"startDate"`
	EndDate     time.Time          `json:"endDate" bson:"endDate"`
	IsAnonymous bool               `json:"isAnonymous" bson:"isAnonymous"`

	IsDeleted bool                `json:"isDeleted" bson:"isDeleted"`
	DeletedAt *time.Time          `json:"deletedAt" bson:"deletedAt"`
	DeletedBy *primitive.ObjectID `json:"deletedBy" bson:"deletedBy"`

	CreatedBy primitive.ObjectID `json:"createdBy" bson:"createdBy"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type Question struct {
	Question string       `json:"question" bson:"question"`
	Type     QuestionType `json:"type" bson:"type"`
	Options  []Option     `json:"options" bson:"options"`
}

type Option struct {
	Text  string `json:"text" bson:"text"`
	Votes int    `json:"votes" bson:"votes"`
}

type Response struct {
	UserID      *primitive.ObjectID `json:"userId,omitempty" bson:"userId,omitempty"`
	Answers     []Answer            `json:"answers" bson:"answers"`
	SubmittedAt time.Time           `json:"submittedAt" bson:"submittedAt"`
}

type Answer struct {
	QuestionIndex   int    `json:"questionIndex" bson:"questionIndex"`
	SelectedOptions []int  `json:"selectedOptions" bson:"selectedOptions"`
	TextAnswer      string `json:"textAnswer,omitempty" bson:"textAnswer,omitempty"`
}

type NotificationType string

const (
	NotificationIncidentUpdate NotificationType = "incident_update"
	NotificationDocumentUpdate NotificationType = "document_update"
	NotificationPoll           NotificationType = "poll"
	NotificationPollCreated    NotificationType = "poll_created"
	NotificationPollClosing    NotificationType = "poll_closing"
	NotificationAnnouncement   NotificationType = "announcement"
	NotificationSMS            NotificationType = "sms"
	NotificationSystem         NotificationType = "system"
	NotificationReminder       NotificationType = "reminder"
)

var NotificationTypes = []NotificationType{
	NotificationIncidentUpdate,
	NotificationDocumentUpdate,
	NotificationPoll,
	NotificationPollCreated,
	NotificationPollClosing,
	NotificationAnnouncement,
	NotificationSMS,
	NotificationSystem,
	NotificationReminder,
}

func (t NotificationType) Valid() bool {
	for _, v := range NotificationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Related entity kinds stored in Notification.RelatedEntityType.
const (
	EntityPoll            = "poll"
	EntityAnnouncement    = "announcement"
	EntitySMSAlert        = "sms_alert"
	EntityIncident        = "incident"
	EntityDocumentRequest = "document_request"
)

// Notification has exactly one recipient. Read and ReadAt always change together:
// Read=false means ReadAt is nil.
type Notification struct {
	ID                primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID            primitive.ObjectID  `json:"userId" bson:"userId"`
	Type              NotificationType    `json:"type" bson:"type"`
	Title             string              `json:"title" bson:"title"`
	Message           string              `json:"message" bson:"message"`
	Priority          string              `json:"priority,omitempty" bson:"priority,omitempty"`
	RelatedEntityType string              `json:"relatedEntityType,omitempty" bson:"relatedEntityType,omitempty"`
	RelatedEntityID   *primitive.ObjectID `json:"relatedEntityId,omitempty" bson:"relatedEntityId,omitempty"`
	Read              bool                `json:"read" bson:"read"`
	ReadAt            *time.Time          `json:"readAt" bson:"readAt"`
	AdminNote         string              `json:"adminNote,omitempty" bson:"adminNote,omitempty"`
	CreatedAt         time.Time           `json:"createdAt" bson:"createdAt"`
}

type Announcement struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title     string             `json:"title" bson:"title"`
	Content   string             `json:"content" bson:"content"`
	Category  string             `json:"category,omitempty" bson:"category,omitempty"`
	Priority  string             `json:"priority" bson:"priority"`
	CreatedBy primitive.ObjectID `json:"createdBy" bson:"createdBy"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	IsDeleted bool               `json:"isDeleted" bson:"isDeleted"`
	DeletedAt *time.Time         `json:"deletedAt,omitempty" bson:"deletedAt,omitempty"`
}

type SMSStatus string

const (
	SMSSent   SMSStatus = "sent"
	SMSFailed SMSStatus = "failed"
)

type SMSAlert struct {
	ID               primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Message          string               `json:"message" bson:"message"`
	Recipients       []primitive.ObjectID `json:"recipients" bson:"recipients"`
	Status           SMSStatus            `json:"status" bson:"status"`
	GatewayMessageID string               `json:"gatewayMessageId,omitempty" bson:"gatewayMessageId,omitempty"`
	Error            string               `json:"error,omitempty" bson:"error,omitempty"`
	CreatedBy        primitive.ObjectID   `json:"createdBy" bson:"createdBy"`
	CreatedAt        time.Time            `json:"createdAt" bson:"createdAt"`
}

// Case is the part of a resident-filed request that the admin desk works on.
type Case struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        primitive.ObjectID `json:"userId" bson:"userId"`
	Status        string             `json:"status" bson:"status"`
	AdminResponse string             `json:"adminResponse,omitempty" bson:"adminResponse,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

func (c *Case) Fields() *Case {
	return c
}

const (
	IncidentPending    = "pending"
	IncidentInProgress = "in_progress"
	IncidentResolved   = "resolved"
	IncidentRejected   = "rejected"
)

var IncidentStatuses = []string{IncidentPending, IncidentInProgress, IncidentResolved, IncidentRejected}

type Incident struct {
	Case        `bson:",inline"`
	Title       string `json:"title" bson:"title" validate:"required,max=200"`
	Description string `json:"description" bson:"description" validate:"required"`
	Category    string `json:"category" bson:"category" validate:"required"`
	Location    string `json:"location,omitempty" bson:"location,omitempty"`
}

const (
	DocumentPending    = "pending"
	DocumentProcessing = "processing"
	DocumentReady      = "ready"
	DocumentRejected   = "rejected"
	DocumentCollected  = "collected"
)

var DocumentStatuses = []string{DocumentPending, DocumentProcessing, DocumentReady, DocumentRejected, DocumentCollected}

type DocumentRequest struct {
	Case         `bson:",inline"`
	DocumentType string `json:"documentType" bson:"documentType" validate:"required"`
	Purpose      string `json:"purpose" bson:"purpose" validate:"required"`
}
