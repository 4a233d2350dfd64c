// Package store persists users, agents, and skills. Skills marked as system
// skills are visible to every user but editable by none.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
)

var (
	ErrEmailTaken    = errors.New("user with this email already exists")
	ErrAgentNotFound = fault.NewValidationError("agent not found")
	ErrSkillNotFound = fault.NewValidationError("skill not found")
)

type User struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string
	CreatedAt    time.Time
}

type Agent struct {
	ID           string `gorm:"primaryKey"`
	UserID       string `gorm:"index"`
	Name         string
	SystemPrompt string
	STTProvider  string
	LLMProvider  string
	TTSProvider  string
	VoiceID      string
	Skills       []string `gorm:"serializer:json"`
	CreatedAt    time.Time
}

type Skill struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"index"`
	Name        string
	Description string
	Category    string
	Content     string
	IsSystem    bool
	CreatedAt   time.Time
}

type Store struct {
	db *gorm.DB
}

// Open connects to the database, migrates the schema, and seeds the system
// skill catalog when it is absent.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&User{}, &Agent{}, &Skill{}); err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.seedSystemSkills(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	user := User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash}
	err := s.db.WithContext(ctx).Create(&user).Error
	if err != nil {
		var existing User
		if lookupErr := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; lookupErr == nil {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (User, bool, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return user, true, nil
}

func (s *Store) CreateAgent(ctx context.Context, agent Agent) (Agent, error) {
	agent.ID = uuid.NewString()
	if err := s.db.WithContext(ctx).Create(&agent).Error; err != nil {
		return Agent{}, err
	}
	return agent, nil
}

// FindAgent returns the agent only when it belongs to the owner.
func (s *Store) FindAgent(ctx context.Context, id, ownerID string) (Agent, error) {
	var agent Agent
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Agent{}, ErrAgentNotFound
	}
	if err != nil {
		return Agent{}, err
	}
	return agent, nil
}

func (s *Store) ListAgents(ctx context.Context, ownerID string) ([]Agent, error) {
	var agents []Agent
	err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("created_at").Find(&agents).Error
	return agents, err
}

func (s *Store) UpdateAgent(ctx context.Context, agent Agent) (Agent, error) {
	if _, err := s.FindAgent(ctx, agent.ID, agent.UserID); err != nil {
		return Agent{}, err
	}
	if err := s.db.WithContext(ctx).Save(&agent).Error; err != nil {
		return Agent{}, err
	}
	return agent, nil
}

func (s *Store) DeleteAgent(ctx context.Context, id, ownerID string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&Agent{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAgentNotFound
	}
	return nil
}

func (s *Store) CreateSkill(ctx context.Context, skill Skill) (Skill, error) {
	skill.ID = uuid.NewString()
	skill.IsSystem = false
	if skill.Category == "" {
		skill.Category = "general"
	}
	if err := s.db.WithContext(ctx).Create(&skill).Error; err != nil {
		return Skill{}, err
	}
	return skill, nil
}

// FindSkill returns a skill the owner can read: their own or a system one.
func (s *Store) FindSkill(ctx context.Context, id, ownerID string) (Skill, error) {
	var skill Skill
	err := s.db.WithContext(ctx).Where("id = ? AND (user_id = ? OR is_system = ?)", id, ownerID, true).First(&skill).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Skill{}, ErrSkillNotFound
	}
	if err != nil {
		return Skill{}, err
	}
	return skill, nil
}

func (s *Store) ListSkills(ctx context.Context, ownerID string) ([]Skill, error) {
	var skills []Skill
	err := s.db.WithContext(ctx).Where("user_id = ? OR is_system = ?", ownerID, true).Order("created_at").Find(&skills).Error
	return skills, err
}

// UpdateSkill modifies a skill the owner created. System skills are not
// editable.
func (s *Store) UpdateSkill(ctx context.Context, skill Skill) (Skill, error) {
	var existing Skill
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ? AND is_system = ?", skill.ID, skill.UserID, false).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Skill{}, ErrSkillNotFound
	}
	if err != nil {
		return Skill{}, err
	}
	skill.IsSystem = false
	skill.CreatedAt = existing.CreatedAt
	if err := s.db.WithContext(ctx).Save(&skill).Error; err != nil {
		return Skill{}, err
	}
	return skill, nil
}

func (s *Store) DeleteSkill(ctx context.Context, id, ownerID string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ? AND is_system = ?", id, ownerID, false).Delete(&Skill{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSkillNotFound
	}
	return nil
}

// SkillFragments resolves skill ids to their content bodies in the supplied
// order. Unknown or unreadable ids are skipped rather than failing the
// exchange.
func (s *Store) SkillFragments(ctx context.Context, ids []string, ownerID string) ([]string, error) {
	var fragments []string
	for _, id := range ids {
		skill, err := s.FindSkill(ctx, id, ownerID)
		if err != nil {
			var validation *fault.ValidationError
			if errors.As(err, &validation) {
				continue
			}
			return nil, err
		}
		fragments = append(fragments, skill.Content)
	}
	return fragments, nil
}

func (s *Store) seedSystemSkills() error {
	var count int64
	if err := s.db.Model(&Skill{}).Where("is_system = ?", true).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, skill := range systemSkills {
		skill.ID = uuid.NewString()
		skill.IsSystem = true
		if err := s.db.Create(&skill).Error; err != nil {
			return err
		}
	}
	return nil
}

var systemSkills = []Skill{
	{
		Name:        "Active Listening",
		Description: "Reflect the user's words back before answering",
		Category:    "communication",
		Content: `---
name: Active Listening
category: communication
---
Before answering, briefly acknowledge what the user said in your own words.
If their request is ambiguous, ask one short clarifying question.`,
	},
	{
		Name:        "Step-by-Step Teaching",
		Description: "Break explanations into small spoken steps",
		Category:    "education",
		Content: `---
name: Step-by-Step Teaching
category: education
---
Explain one step at a time and check understanding before moving on.
Use plain language and avoid jargon unless the user introduces it first.`,
	},
	{
		Name:        "Concise Summaries",
		Description: "Compress long answers into two spoken sentences",
		Category:    "communication",
		Content: `---
name: Concise Summaries
category: communication
---
When a topic is broad, lead with a two-sentence summary and offer to go
deeper only if the user asks.`,
	},
}
