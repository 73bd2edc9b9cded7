package billing

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beatmarkt/BeatMarkt/app/models"
)

// Repository provides the DB operations the reconciler needs.
type Repository interface {
	GetUserByID(id uint) (*models.User, error)
	GetUserByBillingCustomerID(customerID string) (*models.User, error)
	GetUserByBillingSubscriptionID(subscriptionID string) (*models.User, error)
	SaveUserBillingRefs(user *models.User) error
	GetSubscriptionByUserID(userID uint) (*models.BillingSubscription, error)
	FindSubscriptionByBillingID(subscriptionID string) (*models.BillingSubscription, error)
	UpsertSubscriptionByUser(sub *models.BillingSubscription) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByBillingCustomerID(customerID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("billing_customer_id = ?", customerID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByBillingSubscriptionID(subscriptionID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("billing_subscription_id = ?", subscriptionID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SaveUserBillingRefs(user *models.User) error {
	return r.db.Model(user).
		Select("billing_customer_id", "billing_subscription_id").
		Updates(user).Error
}

func (r *gormRepository) GetSubscriptionByUserID(userID uint) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindSubscriptionByBillingID(subscriptionID string) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	err := r.db.Where("billing_subscription_id = ?", subscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscriptionByUser(sub *models.BillingSubscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"billing_customer_id",
			"billing_subscription_id",
			"status",
			"current_period_end",
			"active",
			"cancel_at_period_end",
			"raw_payload_json",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("user_id = ?", sub.UserID).First(sub).Error
}
