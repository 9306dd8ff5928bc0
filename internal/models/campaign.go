package models

// CampaignStatus tracks a campaign through the generation pipeline.
type CampaignStatus string

const (
	CampaignDraft      CampaignStatus = "draft"
	CampaignGenerating CampaignStatus = "generating"
	CampaignReady      CampaignStatus = "ready"
	CampaignPublished  CampaignStatus = "published"
)

// CampaignModel is the generation target assets and ledger entries hang off.
// The full campaign CRUD lives in the upstream service; this core keeps only
// what the pipeline needs.
type CampaignModel struct {
	Base
	OwnerID  string         `json:"owner_id" gorm:"index;not null"`
	Name     string         `json:"name"     gorm:"not null"`
	Platform string         `json:"platform" gorm:"index;not null"`
	Language string         `json:"language" gorm:"not null"`
	Status   CampaignStatus `json:"status"   gorm:"index;not null;default:draft"`
}

func (CampaignModel) TableName() string { return "campaigns" }
