package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ShotStatusPending    = "pending"
	ShotStatusProcessing = "processing"
	ShotStatusCompleted  = "completed"
	ShotStatusFailed     = "failed"
)

// Shot 一个分镜条目。由整片流水线的 storyboard 阶段批量写入，
// SceneId 是跨图片/视频/配音阶段的关联键。
type Shot struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectId  string    `gorm:"index" json:"projectId"`
	SceneId    string    `json:"sceneId"`
	Order      int       `json:"order"`
	Title      string    `json:"title"`
	Prompt     string    `json:"prompt"`
	Narration  string    `json:"narration"`
	BGM        string    `json:"bgm,omitempty"`
	Status     string    `json:"status"`
	ImagePath  string    `json:"imagePath"`
	AudioPath  string    `json:"audioPath"`
	Transition string    `json:"transition"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Shot) TableName() string {
	return "shot"
}

func BatchCreateShots(db *gorm.DB, shots []Shot) error {
	if len(shots) == 0 {
		return nil
	}
	return db.Create(&shots).Error
}

func GetShotsByProjectID(db *gorm.DB, projectID string) ([]Shot, error) {
	var shots []Shot
	err := db.Where("project_id = ?", projectID).Order("`order` ASC").Find(&shots).Error
	return shots, err
}

func GetShotByID(db *gorm.DB, projectID, shotID string) (*Shot, error) {
	var s Shot
	if err := db.First(&s, "id = ? AND project_id = ?", shotID, projectID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateShotByID 只更新非空字段
func UpdateShotByID(db *gorm.DB, projectID, shotID, title, prompt, transition string) error {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if title != "" {
		updates["title"] = title
	}
	if prompt != "" {
		updates["prompt"] = prompt
	}
	if transition != "" {
		updates["transition"] = transition
	}
	return db.Model(&Shot{}).Where("id = ? AND project_id = ?", shotID, projectID).Updates(updates).Error
}

func DeleteShotByID(db *gorm.DB, projectID, shotID string) error {
	return db.Delete(&Shot{}, "id = ? AND project_id = ?", shotID, projectID).Error
}
