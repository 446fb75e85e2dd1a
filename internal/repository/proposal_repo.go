package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/uniserve-app/uniserve-go-api/internal/models"
)

// ServiceProposalRepository handles persistence for custom service proposals.
type ServiceProposalRepository interface {
	Create(ctx context.Context, proposal *models.ServiceProposal) error
	GetByID(ctx context.Context, id uint) (models.ServiceProposal, error)
	DecideIfPending(ctx context.Context, id uint, status string) (bool, error)
	List(ctx context.Context) ([]models.ServiceProposal, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.ServiceProposal, error)
}

type serviceProposalRepository struct {
	db *gorm.DB
}

// NewServiceProposalRepository constructs a repository backed by GORM.
func NewServiceProposalRepository(db *gorm.DB) ServiceProposalRepository {
	return &serviceProposalRepository{db: db}
}

func (r *serviceProposalRepository) Create(ctx context.Context, proposal *models.ServiceProposal) error {
	return r.db.WithContext(ctx).Create(proposal).Error
}

func (r *serviceProposalRepository) GetByID(ctx context.Context, id uint) (models.ServiceProposal, error) {
	var proposal models.ServiceProposal
	if err := r.db.WithContext(ctx).Preload("Student").First(&proposal, id).Error; err != nil {
		return models.ServiceProposal{}, err
	}
	return proposal, nil
}

// DecideIfPending applies the review decision only when the proposal is
// still pending, so the first of two racing decisions wins.
func (r *serviceProposalRepository) DecideIfPending(ctx context.Context, id uint, status string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ServiceProposal{}).
		Where("id = ? AND status = ?", id, models.ProposalStatusPending).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *serviceProposalRepository) List(ctx context.Context) ([]models.ServiceProposal, error) {
	var proposals []models.ServiceProposal
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Order("created_at DESC").
		Find(&proposals).Error; err != nil {
		return nil, err
	}
	return proposals, nil
}

func (r *serviceProposalRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.ServiceProposal, error) {
	var proposals []models.ServiceProposal
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&proposals).Error; err != nil {
		return nil, err
	}
	return proposals, nil
}
