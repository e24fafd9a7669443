package protocol

import "context"

// AvailabilityRequest describes the slot a conversant asked for. Fields come
// from the session's variable bag.
type AvailabilityRequest struct {
	Branch        string `json:"branch"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Participants  int    `json:"participants"`
	GameArea      string `json:"game_area,omitempty"`
	NumberOfGames int    `json:"number_of_games,omitempty"`
}

// DaySlot is an alternative day offering the requested time.
type DaySlot struct {
	Date    string `json:"date"`
	DayName string `json:"day_name"`
}

// Alternatives are the suggestions returned when a slot is unavailable.
type Alternatives struct {
	BeforeSlot        string    `json:"before_slot,omitempty"`
	AfterSlot         string    `json:"after_slot,omitempty"`
	SameTimeOtherDays []DaySlot `json:"same_time_other_days,omitempty"`
}

// AvailabilityResult is the collaborator's verdict for one request.
type AvailabilityResult struct {
	Available    bool          `json:"available"`
	Alternatives *Alternatives `json:"alternatives,omitempty"`
}

// AvailabilityChecker is the external booking lookup. The engine treats it as
// an opaque synchronous dependency; its failures surface as result
// categories, never as session crashes.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, req AvailabilityRequest) (AvailabilityResult, error)
}

// OrderRequest carries the collected conversation data into order creation.
type OrderRequest struct {
	Branch        string `json:"branch"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name,omitempty"`
	Phone         string `json:"phone"`
	Email         string `json:"email,omitempty"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Participants  int    `json:"participants"`
	GameArea      string `json:"game_area,omitempty"`
	NumberOfGames int    `json:"number_of_games,omitempty"`
}

// OrderResult is the created order's payment link and short reference.
type OrderResult struct {
	URL       string `json:"url"`
	Reference string `json:"reference"`
}

// OrderCreator is the external order-creation service.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}
