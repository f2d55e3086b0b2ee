package domain

import "time"

// PathSeparator joins ancestor names in a folder's materialized path.
const PathSeparator = "/"

type Folder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parentId"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FolderPath computes the materialized path for name placed under parent (nil means root).
func FolderPath(parent *Folder, name string) string {
	if parent == nil {
		return name
	}
	return parent.Path + PathSeparator + name
}

// FolderUpdate carries an optional rename and an optional re-parent.
// SetParent distinguishes "move to root" (SetParent with nil ParentID) from "keep parent".
type FolderUpdate struct {
	Name      *string
	SetParent bool
	ParentID  *string
}

// FolderPlanEntry is one folder of an onboarding structure proposal.
// ParentKey refers to the Key of an earlier entry in the same plan.
type FolderPlanEntry struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	ParentKey string `json:"parentKey,omitempty"`
}
