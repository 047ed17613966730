package domain

import "time"

type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

type JobStatus string

const (
	JobOpen     JobStatus = "open"
	JobHeld     JobStatus = "held"
	JobAssigned JobStatus = "assigned"
)

type OfferType string

const (
	OfferFast   OfferType = "fast"
	OfferBudget OfferType = "budget"
)

type Audience string

const (
	AudienceHomeowner  Audience = "homeowner"
	AudienceContractor Audience = "contractor"
	AudienceBoth       Audience = "both"
)

// Agents that speak in the event feed.
const (
	AgentHomeowner  = "Homeowner Agent"
	AgentDispatcher = "Dispatcher Agent"
	AgentContractor = "Contractor Agent"
	AgentSystem     = "System"
)

type Job struct {
	ID                 string     `json:"id"`
	Category           string     `json:"category"`
	Address            string     `json:"address"`
	Lat                float64    `json:"lat"`
	Lng                float64    `json:"lng"`
	Price              float64    `json:"price"`
	Urgency            Urgency    `json:"urgency" enum:"low,medium,high,emergency"`
	Description        string     `json:"description"`
	CustomerName       string     `json:"customerName"`
	Phone              string     `json:"phone"`
	CreatedAt          time.Time  `json:"createdAt"`
	Status             JobStatus  `json:"status" enum:"open,held,assigned"`
	HoldUntil          *time.Time `json:"holdUntil,omitempty"`
	AssignedContractor string     `json:"assignedContractor,omitempty"`
	FinalPrice         *float64   `json:"finalPrice,omitempty"`
	AssignedAt         *time.Time `json:"assignedAt,omitempty"`
	BookingID          string     `json:"bookingId,omitempty"`
	Media              []string   `json:"media,omitempty"`
	Analysis           *Analysis  `json:"analysis,omitempty"`
}

type Draft struct {
	ID          string     `json:"id"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory,omitempty"`
	Urgency     Urgency    `json:"urgency" enum:"low,medium,high,emergency"`
	BudgetHint  *float64   `json:"budget_hint,omitempty"`
	Location    [2]float64 `json:"location"`
	Description string     `json:"description"`
	Attachments []string   `json:"attachments"`
	Analysis    *Analysis  `json:"analysis,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Offer struct {
	ID             string    `json:"id"`
	JobID          string    `json:"jobId"`
	ContractorID   string    `json:"contractorId"`
	ContractorName string    `json:"contractorName"`
	Price          float64   `json:"price"`
	ETA            string    `json:"eta"`
	Message        string    `json:"message"`
	Rating         float64   `json:"rating"`
	Type           OfferType `json:"type" enum:"fast,budget"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Booking struct {
	ID             string    `json:"id"`
	JobID          string    `json:"jobId"`
	ContractorID   string    `json:"contractorId"`
	ContractorName string    `json:"contractorName"`
	Price          float64   `json:"price"`
	ETAMin         int       `json:"etaMin"`
	ArrivalBy      time.Time `json:"arrivalByIso"`
	WindowMin      int       `json:"windowMin"`
	Phone          string    `json:"phone"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Event struct {
	ID                string         `json:"id"`
	Seq               uint64         `json:"-"`
	Timestamp         time.Time      `json:"timestamp"`
	Agent             string         `json:"agent"`
	Action            string         `json:"action"`
	JobID             string         `json:"jobId,omitempty"`
	Details           map[string]any `json:"details"`
	Audience          Audience       `json:"audience" enum:"homeowner,contractor,both"`
	ContractorID      string         `json:"contractorId,omitempty"`
	Message           string         `json:"message"`
	ConversationStyle bool           `json:"conversationStyle"`
}

type Location struct {
	Address      string  `json:"address,omitempty"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Neighborhood string  `json:"neighborhood,omitempty"`
}

type Availability struct {
	ContractorID string    `json:"contractorId"`
	Location     Location  `json:"location"`
	Skills       []string  `json:"skills"`
	BudgetMax    float64   `json:"budgetMax,omitempty"`
	RadiusMeters int       `json:"radiusMeters"`
	Until        time.Time `json:"untilIso"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Live reports whether the window is still open at now.
func (a Availability) Live(now time.Time) bool {
	return now.Before(a.Until)
}

type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

type Fix struct {
	Name    string     `json:"name"`
	TimeMin int        `json:"time_min"`
	Parts   []string   `json:"parts"`
	Est     [2]float64 `json:"est"`
}

// Analysis is a structured triage diagnosis attached to drafts and jobs.
type Analysis struct {
	SuspectedIssue      string     `json:"suspected_issue"`
	Confidence          float64    `json:"confidence"`
	PhotoInsights       []string   `json:"photo_insights,omitempty"`
	PossibleCauses      []string   `json:"possible_causes,omitempty"`
	ClarifyingQuestions []Question `json:"clarifying_questions,omitempty"`
	CommonFixes         []Fix      `json:"common_fixes,omitempty"`
	RiskNotes           []string   `json:"risk_notes,omitempty"`
	LocalPriceBand      string     `json:"local_price_band,omitempty"`
}

type SuggestedUpdates struct {
	Category          string  `json:"category"`
	Urgency           Urgency `json:"urgency"`
	DescriptionAppend string  `json:"description_append"`
}
