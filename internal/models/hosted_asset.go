package models

// HostedAssetModel records one durably persisted generation output. The
// permanent URL always points at our own storage; provider URLs are only kept
// as provenance via SourceProviderID.
type HostedAssetModel struct {
	Base
	CampaignID       string  `json:"campaign_id"        gorm:"index;not null"`
	MediaKind        string  `json:"media_kind"         gorm:"index;not null"` // text | image | video
	SourceProviderID string  `json:"source_provider_id" gorm:"not null"`
	StorageTier      string  `json:"storage_tier"       gorm:"index;not null"`
	ObjectKey        string  `json:"object_key"         gorm:"not null"`
	PermanentURL     string  `json:"permanent_url"      gorm:"not null"`
	ContentType      string  `json:"content_type"`
	ByteSize         int64   `json:"byte_size"`
	SupersededBy     *string `json:"superseded_by,omitempty" gorm:"type:char(36)"`
}

func (HostedAssetModel) TableName() string { return "hosted_assets" }
