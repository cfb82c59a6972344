package domain

// DateLayout is the storage and wire format of every calendar date.
const DateLayout = "2006-01-02"

// Role is the lifecycle role a meeting kind plays for ordinances.
type Role string

const (
	RoleNone         Role = ""
	RoleIntroduction Role = "introduction"
	RoleHearing      Role = "hearing"
)

const (
	MeetingUpcoming   = "upcoming"
	MeetingInProgress = "in_progress"
	MeetingCompleted  = "completed"
)

const (
	ItemNew       = "new"
	ItemReviewed  = "reviewed"
	ItemAccepted  = "accepted"
	ItemNeedsInfo = "needs_info"
	ItemRejected  = "rejected"
	ItemOnAgenda  = "on_agenda"
)

// OnAgenda reports whether status places an item on its meeting's agenda.
// accepted and on_agenda are equivalent.
func OnAgenda(status string) bool {
	return status == ItemAccepted || status == ItemOnAgenda
}

// History owner kinds.
const (
	OwnerMeeting   = "meeting"
	OwnerItem      = "item"
	OwnerOrdinance = "ordinance"
)

type Meeting struct {
	ID              int64   `json:"id"`
	Type            string  `json:"meeting_type"`
	Date            string  `json:"meeting_date" format:"date"`
	Time            string  `json:"meeting_time"`
	CycleDate       string  `json:"cycle_date" format:"date"`
	Status          string  `json:"status" enum:"upcoming,in_progress,completed"`
	VideoURL        *string `json:"video_url,omitempty"`
	MinutesText     *string `json:"minutes_text,omitempty"`
	MinutesOverride *string `json:"minutes_override,omitempty"`
	Label           string  `json:"label,omitempty"`
	Role            Role    `json:"role,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

// Minutes returns the clerk override when present, else the generated text.
func (m Meeting) Minutes() string {
	if m.MinutesOverride != nil {
		return *m.MinutesOverride
	}
	if m.MinutesText != nil {
		return *m.MinutesText
	}
	return ""
}

type DocketItem struct {
	ID                string          `json:"id"`
	Subject           string          `json:"subject"`
	Submitter         string          `json:"submitter,omitempty"`
	ItemType          string          `json:"item_type"`
	ExtractedFields   map[string]any  `json:"extracted_fields,omitempty"`
	Completeness      map[string]bool `json:"completeness,omitempty"`
	Attachments       []string        `json:"attachments,omitempty"`
	Summary           string          `json:"summary,omitempty"`
	SummaryOverride   *string         `json:"summary_override,omitempty"`
	Status            string          `json:"status" enum:"new,reviewed,accepted,needs_info,rejected,on_agenda"`
	TargetMeetingDate *string         `json:"target_meeting_date,omitempty" format:"date"`
	CreatedAt         string          `json:"created_at" format:"date-time"`
	UpdatedAt         string          `json:"updated_at" format:"date-time"`
}

// DisplaySummary falls back to the generated summary when no override is set.
func (d DocketItem) DisplaySummary() string {
	if d.SummaryOverride != nil {
		return *d.SummaryOverride
	}
	return d.Summary
}

// OrdinanceTracking is the lifecycle checklist of one ordinance docket item.
// Its stage is derived, never stored.
type OrdinanceTracking struct {
	DocketID            string  `json:"docket_id"`
	OrdinanceNumber     *string `json:"ordinance_number,omitempty"`
	IntroductionDate    *string `json:"introduction_date,omitempty" format:"date"`
	IntroductionMeeting *string `json:"introduction_meeting,omitempty"`
	PubIntroDate        *string `json:"pub_intro_date,omitempty" format:"date"`
	PubIntroNewspaper   *string `json:"pub_intro_newspaper,omitempty"`
	BulletinPostedDate  *string `json:"bulletin_posted_date,omitempty" format:"date"`
	HearingDate         *string `json:"hearing_date,omitempty" format:"date"`
	HearingAmended      bool    `json:"hearing_amended"`
	HearingNotes        *string `json:"hearing_notes,omitempty"`
	AdoptionDate        *string `json:"adoption_date,omitempty" format:"date"`
	AdoptionVote        *string `json:"adoption_vote,omitempty"`
	AdoptionFailed      bool    `json:"adoption_failed"`
	PubFinalDate        *string `json:"pub_final_date,omitempty" format:"date"`
	PubFinalNewspaper   *string `json:"pub_final_newspaper,omitempty"`
	EffectiveDate       *string `json:"effective_date,omitempty" format:"date"`
	IsEmergency         bool    `json:"is_emergency"`
	WebsitePostedDate   *string `json:"website_posted_date,omitempty" format:"date"`
	WebsiteURL          *string `json:"website_url,omitempty"`
	ClerkNotes          *string `json:"clerk_notes,omitempty"`
	CreatedAt           string  `json:"created_at" format:"date-time"`
	UpdatedAt           string  `json:"updated_at" format:"date-time"`
}

type HistoryEntry struct {
	ID        int64   `json:"id"`
	OwnerKind string  `json:"owner_kind" enum:"meeting,item,ordinance"`
	OwnerID   string  `json:"owner_id"`
	Field     string  `json:"field"`
	OldValue  *string `json:"old_value,omitempty"`
	NewValue  *string `json:"new_value,omitempty"`
	ActorID   string  `json:"actor_id"`
	TS        string  `json:"ts" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}

// FieldChange is one field transition of one record, serialized as text.
type FieldChange struct {
	Field string  `json:"field"`
	Old   *string `json:"old,omitempty"`
	New   *string `json:"new,omitempty"`
}
