package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PollQuery struct {
	Status         PollStatus
	IncludeDeleted bool
	// OpenAt keeps only polls with StartDate <= OpenAt <= EndDate.
	OpenAt *time.Time
}

func (q PollQuery) filter() bson.M {
	f := bson.M{}
	if q.Status != "" {
		f["status"] = q.Status
	}
	if !q.IncludeDeleted {
		f["isDeleted"] = bson.M{"$ne": true}
	}
	if q.OpenAt != nil {
		f["startDate"] = bson.M{"$lte": *q.OpenAt}
		f["endDate"] = bson.M{"$gte": *q.OpenAt}
	}
	return f
}

func (q PollQuery) Matches(p *Poll) bool {
	if q.Status != "" && p.Status != q.Status {
		return false
	}
	if !q.IncludeDeleted && p.IsDeleted {
		return false
	}
	if q.OpenAt != nil && (p.StartDate.After(*q.OpenAt) || p.EndDate.Before(*q.OpenAt)) {
		return false
	}
	return true
}

// Apply copies the set fields onto p.
func (c PollChanges) Apply(p *Poll) {
	p.UpdatedAt = c.UpdatedAt
	if c.Title != nil {
		p.Title = *c.Title
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
	if c.Questions != nil {
		p.Questions = c.Questions
	}
	if c.Status != nil {
		p.Status = *c.Status
	}
	if c.StartDate != nil {
		p.StartDate = *c.StartDate
	}
	if c.EndDate != nil {
		p.EndDate = *c.EndDate
	}
	if c.IsAnonymous != nil {
		p.IsAnonymous = *c.IsAnonymous
	}
}

// PollChanges holds an admin edit; nil fields are left untouched.
type PollChanges struct {
	Title       *string
	Description *string
	Questions   []Question
	Status      *PollStatus
	StartDate   *time.Time
	EndDate     *time.Time
	IsAnonymous *bool
	UpdatedAt   time.Time
}

func (c PollChanges) set() bson.M {
	s := bson.M{"updatedAt": c.UpdatedAt}
	if c.Title != nil {
		s["title"] = *c.Title
	}
	if c.Description != nil {
		s["description"] = *c.Description
	}
	if c.Questions != nil {
		s["questions"] = c.Questions
	}
	if c.Status != nil {
		s["status"] = *c.Status
	}
	if c.StartDate != nil {
		s["startDate"] = *c.StartDate
	}
	if c.EndDate != nil {
		s["endDate"] = *c.EndDate
	}
	if c.IsAnonymous != nil {
		s["isAnonymous"] = *c.IsAnonymous
	}
	return s
}

// NotificationFilter selects notifications. Zero fields do not constrain.
type NotificationFilter struct {
	IDs    []primitive.ObjectID
	UserID *primitive.ObjectID
	// Kind matches either the notification type or its related entity type.
	Kind              string
	Type              NotificationType
	RelatedEntityType string
	RelatedEntityIDs  []primitive.ObjectID
	Read              *bool
}

func (f NotificationFilter) filter() bson.M {
	m := bson.M{}
	if f.IDs != nil {
		m["_id"] = bson.M{"$in": f.IDs}
	}
	if f.UserID != nil {
		m["userId"] = *f.UserID
	}
	if f.Kind != "" {
		m["$or"] = bson.A{
			bson.M{"type": f.Kind},
			bson.M{"relatedEntityType": f.Kind},
		}
	}
	if f.Type != "" {
		m["type"] = f.Type
	}
	if f.RelatedEntityType != "" {
		m["relatedEntityType"] = f.RelatedEntityType
	}
	if f.RelatedEntityIDs != nil {
		m["relatedEntityId"] = bson.M{"$in": f.RelatedEntityIDs}
	}
	if f.Read != nil {
		m["read"] = *f.Read
	}
	return m
}

// Matches evaluates the filter against a decoded notification, with the same semantics as
// the query the stores send to the server.
func (f NotificationFilter) Matches(n *Notification) bool {
	if f.IDs != nil && !containsID(f.IDs, n.ID) {
		return false
	}
	if f.UserID != nil && n.UserID != *f.UserID {
		return false
	}
	if f.Kind != "" && string(n.Type) != f.Kind && n.RelatedEntityType != f.Kind {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.RelatedEntityType != "" && n.RelatedEntityType != f.RelatedEntityType {
		return false
	}
	if f.RelatedEntityIDs != nil && (n.RelatedEntityID == nil || !containsID(f.RelatedEntityIDs, *n.RelatedEntityID)) {
		return false
	}
	if f.Read != nil && n.Read != *f.Read {
		return false
	}
	return true
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type CaseQuery struct {
	UserID *primitive.ObjectID
	Status string
}

func (q CaseQuery) filter() bson.M {
	f := bson.M{}
	if q.UserID != nil {
		f["userId"] = *q.UserID
	}
	if q.Status != "" {
		f["status"] = q.Status
	}
	return f
}

func (q CaseQuery) Matches(c *Case) bool {
	if q.UserID != nil && c.UserID != *q.UserID {
		return false
	}
	return q.Status == "" || c.Status == q.Status
}
