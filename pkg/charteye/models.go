package charteye

// AccountStatus is the billing tier of a user profile.
type AccountStatus string

const (
	AccountFree    AccountStatus = "Free"
	AccountPremium AccountStatus = "Premium"
)

// UserProfile represents a row in user_profiles.
type UserProfile struct {
	UserID        string        `json:"userId"`
	DisplayName   string        `json:"displayName"`
	Email         string        `json:"email"`
	AccountStatus AccountStatus `json:"accountStatus"`
	UploadCount   int           `json:"uploadCount"`
	CreatedAt     string        `json:"createdAt"`
	UpdatedAt     string        `json:"updatedAt"`
}

// ProfileUpdate carries the user-editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	DisplayName *string
	Email       *string
}

// Grading is the score block attached to a chart analysis. Every field is in [0, 10].
type Grading struct {
	PatternClarity     float64 `json:"patternClarity"`
	TrendAlignment     float64 `json:"trendAlignment"`
	RiskReward         float64 `json:"riskReward"`
	VolumeConfirmation float64 `json:"volumeConfirmation"`
	KeyLevelProximity  float64 `json:"keyLevelProximity"`
	OverallGrade       float64 `json:"overallGrade"`
}

// ChartAnalysis is the stored result of one chart upload.
type ChartAnalysis struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId,omitempty"`
	ImageURL  string  `json:"imageUrl"`
	Analysis  string  `json:"analysis"`
	Grading   Grading `json:"grading"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
	Provenance
}

// PublicAnalysis is a chart analysis with owner fields removed.
type PublicAnalysis struct {
	ID        string  `json:"id"`
	ImageURL  string  `json:"imageUrl"`
	Analysis  string  `json:"analysis"`
	Grading   Grading `json:"grading"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// Public returns the shareable view of the analysis.
func (a ChartAnalysis) Public() PublicAnalysis {
	return PublicAnalysis{
		ID:        a.ID,
		ImageURL:  a.ImageURL,
		Analysis:  a.Analysis,
		Grading:   a.Grading,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// IndicatorCode is a generated trading indicator script.
type IndicatorCode struct {
	ID          string `json:"id,omitempty"`
	UserID      string `json:"userId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Code        string `json:"code"`
	Language    string `json:"language"`
	Platform    string `json:"platform"`
	IsPublic    bool   `json:"isPublic"`
	CreatedAt   string `json:"createdAt"`
	Provenance
}
