package projects

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ProjectNotFoundError represents an error when a project is not found
type ProjectNotFoundError struct {
	ID uint
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project not found: %d", e.ID)
}

// NewProjectNotFoundError creates a new ProjectNotFoundError
func NewProjectNotFoundError(id uint) *ProjectNotFoundError {
	return &ProjectNotFoundError{ID: id}
}

// Project represents a tracked website or application
type Project struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Domain      string    `gorm:"unique;not null" json:"domain"`
	PrivacyMode string    `gorm:"default:'standard'" json:"privacy_mode"` // "strict" withholds geo fields at collection
	CreatedAt   time.Time `json:"created_at"`
}

// GetProjectOrNotFound retrieves a project by id
func GetProjectOrNotFound(db *gorm.DB, id uint) (*Project, error) {
	var project Project
	if err := db.First(&project, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewProjectNotFoundError(id)
		}
		return nil, fmt.Errorf("unexpected error querying project: %w", err)
	}
	return &project, nil
}

// GetProjectByDomain retrieves a project by its domain
func GetProjectByDomain(db *gorm.DB, domain string) (*Project, error) {
	var project Project
	if err := db.Where("domain = ?", domain).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// GetAllProjects retrieves all projects
func GetAllProjects(db *gorm.DB) ([]Project, error) {
	var all []Project
	if err := db.Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to get projects: %w", err)
	}
	return all, nil
}

// CreateProject creates a new project
func CreateProject(db *gorm.DB, project *Project) error {
	project.CreatedAt = time.Now().UTC()

	if project.PrivacyMode == "" {
		project.PrivacyMode = "standard"
	}

	return db.Create(project).Error
}

// DeleteProject deletes a project by id. Events and definitions cascade.
func DeleteProject(db *gorm.DB, id uint) error {
	result := db.Delete(&Project{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
