package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-pos-ledger/internal/apperr"
	"go-pos-ledger/internal/database"
	"go-pos-ledger/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned for a wrong username, store or password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Actor is the identity a sale is authorised against.
type Actor struct {
	ID       string
	Username string
	Role     models.Role
	Store    models.Store
}

// CanAccess reports whether the actor may act on store. Managers are store-scoped, admins are not.
func (a Actor) CanAccess(store models.Store) bool {
	return a.Role == models.RoleAdmin || a.Store == store
}

// Directory is the user store: password hashing, lookup and actor resolution.
type Directory struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ResolveActor looks the user up by id.
func (d *Directory) ResolveActor(ctx context.Context, id string) (*Actor, error) {
	var u models.User
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user", id)
	}
	if err != nil {
		return nil, apperr.Persistence("resolve actor", err)
	}
	return &Actor{ID: u.ID, Username: u.Username, Role: u.Role, Store: u.Store}, nil
}

// CreateInitialAdmin creates the first admin. It fails once any user exists.
func (d *Directory) CreateInitialAdmin(ctx context.Context, username, password string) (*models.User, error) {
	var user *models.User
	err := database.Transact(ctx, d.db, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("admin already exists")
		}
		u, err := d.insert(tx, username, password, models.RoleAdmin, "")
		user = u
		return err
	})
	if err != nil {
		return nil, apperr.Persistence("create initial admin", err)
	}
	return user, nil
}

// Register creates a user. Admins are not bound to a store; managers must name one.
func (d *Directory) Register(ctx context.Context, username, password string, role models.Role, store models.Store) (*models.User, error) {
	if !role.Valid() {
		return nil, apperr.Invalid("role", "invalid role %q", role)
	}
	if role == models.RoleAdmin {
		store = ""
	} else if !store.Valid() {
		return nil, apperr.Invalid("store", "invalid store %q", store)
	}

	user, err := d.insert(d.db.WithContext(ctx), username, password, role, store)
	if err != nil {
		return nil, apperr.Persistence("register user", err)
	}
	return user, nil
}

func (d *Directory) insert(tx *gorm.DB, username, password string, role models.Role, store models.Store) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.Invalid("username", "is required")
	}
	if password == "" {
		return nil, apperr.Invalid("password", "is required")
	}

	// Hash the Password
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashed),
		Role:         role,
		Store:        store,
		CreatedAt:    d.now(),
	}
	if err := tx.Create(user).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return nil, apperr.Conflict("username already exists in this store")
		}
		return nil, err
	}
	return user, nil
}

// Authenticate checks a password and stamps the last login.
func (d *Directory) Authenticate(ctx context.Context, username, password string, store models.Store) (*models.User, error) {
	db := d.db.WithContext(ctx)

	var user models.User
	err := db.Where("username = ? AND store = ?", strings.TrimSpace(username), store).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Persistence("find user", err)
	}

	// This compares the input "password" with the "hash" from DB
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := d.now()
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		return nil, apperr.Persistence("update last login", err)
	}
	user.LastLogin = &now
	return &user, nil
}

// Delete removes a user. Sales keep their weak reference to the deleted id.
func (d *Directory) Delete(ctx context.Context, username string, store models.Store) error {
	res := d.db.WithContext(ctx).Where("username = ? AND store = ?", username, store).Delete(&models.User{})
	if res.Error != nil {
		return apperr.Persistence("delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user", username)
	}
	return nil
}
