package model

// Header is the work-order identification copied onto sessions and
// documents. It is a denormalized copy and may diverge from the source OM.
type Header struct {
	OM          string `json:"om" gorm:"size:64"`
	Tag         string `json:"tag" gorm:"size:64"`
	Area        string `json:"area" gorm:"size:64"`
	Date        string `json:"date" gorm:"size:16"`
	Time        string `json:"time" gorm:"size:8"`
	Type        string `json:"type" gorm:"size:32"`
	Description string `json:"description" gorm:"type:text"`
}
