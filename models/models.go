package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex"`
	Name         string
	GoogleID     *string `gorm:"uniqueIndex"`
	Picture      string
	PasswordHash string `json:"-"`
	Forms        []Form `json:",omitempty"`
	Teams        []Team `gorm:"many2many:user_teams;" json:",omitempty"`
}

type Team struct {
	gorm.Model
	Name    string
	OwnerID uint
	Users   []User `gorm:"many2many:user_teams;"`
	Forms   []Form
}

type Folder struct {
	gorm.Model
	OwnerID uint `gorm:"index"`
	Name    string
	Forms   []Form
}

type FormStatus string

const (
	FormDraft     FormStatus = "draft"
	FormPublished FormStatus = "published"
	FormClosed    FormStatus = "closed"
)

type Form struct {
	gorm.Model
	UserID        uint `gorm:"index"`
	TeamID        *uint
	FolderID      *uint
	Title         string
	Description   string
	Status        FormStatus `gorm:"default:draft"`
	Fields        []Field
	Rules         []Rule
	ResponseLimit *int
	ResponseCount int
	CloseDate     *time.Time
	RedirectURL   string
	ClosedMessage string
	Theme         datatypes.JSONMap
	Responses     []Response `json:",omitempty"`
	Link          string     `gorm:"-"`
	Version       int
}

// Field keeps its public Key across edits; rules and stored answers
// reference fields by Key, never by row id.
type Field struct {
	gorm.Model
	FormID             uint   `gorm:"uniqueIndex:idx_field_form_key"`
	Key                string `gorm:"uniqueIndex:idx_field_form_key"`
	Kind               string
	Label              string
	Required           bool
	Order              int
	Options            []Option `gorm:"foreignKey:FieldID"`
	MinLength          *int
	MaxLength          *int
	Pattern            string
	CustomErrorMessage string
}

type Option struct {
	gorm.Model
	FieldID uint
	Text    string
	Order   int
}

type Rule struct {
	gorm.Model
	FormID          uint `gorm:"index"`
	Key             string
	Order           int
	SourceFieldKey  string
	Comparator      string // equals, not_equals, contains, greater_than, less_than
	ComparisonValue string
	Action          string // show, hide, require, skip_to
	TargetFieldKey  string
}

type FormLink struct {
	gorm.Model
	FormID   uint   `gorm:"index"`
	Token    string `gorm:"uniqueIndex"`
	IsActive bool
}

type Response struct {
	gorm.Model
	FormID                uint `gorm:"index"`
	SubmitterKind         string
	SubmitterID           string
	CompletionTimeSeconds float64
	SubmittedAt           time.Time
	Answers               []Answer
	IP                    string
	UserAgent             string
}

type Answer struct {
	gorm.Model
	ResponseID uint `gorm:"index"`
	FieldKey   string
	FieldLabel string
	FieldKind  string
	Position   int
	Value      datatypes.JSON
}

type WebhookKind string

const (
	WebhookGeneric WebhookKind = "generic"
	WebhookSlack   WebhookKind = "slack"
	WebhookDiscord WebhookKind = "discord"
)

type Webhook struct {
	gorm.Model
	UserID uint
	FormID uint `gorm:"index"`
	Kind   WebhookKind
	URL    string
	Events string
	Secret string `json:",omitempty"`
	Active bool
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Team{},
		&Folder{},
		&Form{},
		&Field{},
		&Option{},
		&Rule{},
		&FormLink{},
		&Response{},
		&Answer{},
		&Webhook{},
	}
}
