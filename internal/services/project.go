package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/apperr"
	"github.com/beedevservices/portal/internal/models"
)

// ProjectService materializes delivery projects from signed proposals.
type ProjectService struct {
	db *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

// FromProposal creates the delivery project for a signed proposal. The
// name comes from the proposal title; slug collisions get a numeric
// suffix; the manager defaults to the proposal's author.
func (s *ProjectService) FromProposal(ctx context.Context, proposalID uint, managerID *uint) (*models.Project, error) {
	var out *models.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		if err := lockForUpdate(tx).First(&p, proposalID).Error; err != nil {
			return err
		}
		if p.SignedAt == nil {
			return apperr.Validation("proposal is not signed", "signed_at", "required")
		}
		var existing int64
		if err := tx.Model(&models.Project{}).Where("proposal_id = ?", p.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperr.Conflict("project", "already created")
		}

		slug, err := uniqueProjectSlug(tx, slugify(p.Title))
		if err != nil {
			return err
		}
		if managerID == nil {
			managerID = p.CreatedByID
		}
		project := &models.Project{
			CompanyID:  p.CompanyID,
			ProposalID: &p.ID,
			Name:       p.Title,
			Slug:       slug,
			Status:     models.ProjectPlanning,
			ManagerID:  managerID,
			IsActive:   true,
		}
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		out = project
		return nil
	})
	return out, err
}

// uniqueProjectSlug appends -2, -3, ... until the slug is free.
func uniqueProjectSlug(tx *gorm.DB, base string) (string, error) {
	if base == "" {
		base = "project"
	}
	slug := base
	for n := 2; ; n++ {
		var count int64
		if err := tx.Model(&models.Project{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

// Get loads a project.
func (s *ProjectService) Get(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// ListForCompany returns a company's projects, newest first.
func (s *ProjectService) ListForCompany(ctx context.Context, companyID uint) ([]models.Project, error) {
	var projects []models.Project
	err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC, id DESC").
		Find(&projects).Error
	return projects, err
}
