package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jordanlanch/assetdesk/pkg/auth"
	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/logger"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/jordanlanch/assetdesk/pkg/organization"
)

const (
	msgEmailTaken         = "User with this email already exists."
	msgInvalidCredentials = "Invalid email or password."
	msgNameRequired       = "Name is required."
)

// User is an account belonging to one organization
type User struct {
	ID             int
	Name           string
	Email          string
	PasswordHash   string
	Role           string
	OrganizationID *int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Info converts the user to its API representation
func (u *User) Info(org *organization.Organization) *models.UserInfo {
	info := &models.UserInfo{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role,
		OrganizationID: u.OrganizationID,
	}
	if org != nil {
		info.Organization = org.Summary()
	}
	return info
}

var columns = []string{"id", "name", "email", "password_hash", "role", "organization_id", "created_at", "updated_at"}

// Service handles accounts: registration, login, invitations and profiles
type Service struct {
	db                 *database.Client
	orgs               *organization.Service
	email              domain.EmailSender
	log                logger.Logger
	jwtSecret          string
	jwtExpirationHours int
	now                func() time.Time
}

// NewService creates a new users service
func NewService(db *database.Client, orgs *organization.Service, jwtSecret string, jwtExpirationHours int, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		db:                 db,
		orgs:               orgs,
		log:                log,
		jwtSecret:          jwtSecret,
		jwtExpirationHours: jwtExpirationHours,
		now:                time.Now,
	}
}

// SetEmailSender sets the sender used for welcome emails
func (s *Service) SetEmailSender(sender domain.EmailSender) {
	s.email = sender
}

// SlugFromEmail derives an organization slug from the first label of the
// email domain and a millisecond timestamp.
func SlugFromEmail(email string, at time.Time) string {
	base := "org"
	if i := strings.LastIndex(email, "@"); i >= 0 && i < len(email)-1 {
		label := strings.ToLower(strings.SplitN(email[i+1:], ".", 2)[0])
		var b strings.Builder
		for _, r := range label {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			base = b.String()
		}
	}
	return base + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}

// cleanName trims name and rejects a blank one
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.NewValidationError(msgNameRequired)
	}
	return name, nil
}

// Register creates an organization and its first user, who becomes ADMIN.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	name, err := cleanName(req.Name)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)
	if _, err := s.getByEmail(ctx, s.db.Driver, email); err == nil {
		return nil, domain.NewConflictError(msgEmailTaken)
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var (
		user *User
		org  *organization.Organization
	)
	// The slug carries a millisecond timestamp; a collision is retried once with a random suffix.
	for attempt := 0; attempt < 2; attempt++ {
		slug := SlugFromEmail(email, s.now())
		if attempt > 0 {
			slug += "-" + uuid.NewString()[:8]
		}

		err = s.db.WithTx(ctx, func(tx dialect.ExecQuerier) error {
			o, err := s.orgs.Tx(tx).Create(ctx, fmt.Sprintf("%s's Organization", name), slug)
			if err != nil {
				return err
			}
			u, err := s.insert(ctx, tx, name, email, hash, domain.RoleAdmin, o.ID)
			if err != nil {
				return err
			}
			org, user = o, u
			return nil
		})
		if !errors.Is(err, organization.ErrSlugTaken) {
			break
		}
	}
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, domain.NewConflictError(msgEmailTaken)
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.sendWelcome(ctx, user, org)

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Message: "User registered successfully",
		User:    user.Info(org),
		Token:   token,
	}, nil
}

// Login verifies credentials and issues a token.
// Unknown emails and wrong passwords are reported identically.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	user, err := s.getByEmail(ctx, s.db.Driver, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.NewUnauthorizedError(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, domain.NewUnauthorizedError(msgInvalidCredentials)
	}

	org, err := s.organizationOf(ctx, user)
	if err != nil {
		return nil, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Message: "Login successful",
		User:    user.Info(org),
		Token:   token,
	}, nil
}

// Me returns the profile of the authenticated user
func (s *Service) Me(ctx context.Context, userID int) (*models.UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	user, err := s.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.NewNotFoundError("User not found.")
		}
		return nil, err
	}

	org, err := s.organizationOf(ctx, user)
	if err != nil {
		return nil, err
	}

	info := user.Info(org)
	createdAt := user.CreatedAt
	info.CreatedAt = &createdAt
	return info, nil
}

// Invite creates an EMPLOYEE in the caller's organization
func (s *Service) Invite(ctx context.Context, orgID int, req models.InviteRequest) (*models.UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	user, org, err := s.addMember(ctx, orgID, domain.RoleEmployee, req)
	if err != nil {
		return nil, err
	}

	s.sendWelcome(ctx, user, org)

	return user.Info(nil), nil
}

// AddMember creates a user with role in the organization without sending a welcome email.
// It is used by the seed command.
func (s *Service) AddMember(ctx context.Context, orgID int, role string, req models.InviteRequest) (*models.UserInfo, error) {
	user, _, err := s.addMember(ctx, orgID, role, req)
	if err != nil {
		return nil, err
	}
	return user.Info(nil), nil
}

func (s *Service) addMember(ctx context.Context, orgID int, role string, req models.InviteRequest) (*User, *organization.Organization, error) {
	name, err := cleanName(req.Name)
	if err != nil {
		return nil, nil, err
	}
	email := normalizeEmail(req.Email)
	if _, err := s.getByEmail(ctx, s.db.Driver, email); err == nil {
		return nil, nil, domain.NewConflictError(msgEmailTaken)
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to check email: %w", err)
	}

	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, domain.NewNotFoundError("Organization not found")
		}
		return nil, nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.insert(ctx, s.db.Driver, name, email, hash, role, orgID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, nil, domain.NewConflictError(msgEmailTaken)
		}
		return nil, nil, fmt.Errorf("failed to add user: %w", err)
	}
	return user, org, nil
}

// List returns the members of an organization ordered by name
func (s *Service) List(ctx context.Context, orgID int) ([]models.UserInfo, error) {
	users, err := s.query(ctx, entsql.EQ("organization_id", orgID), "name")
	if err != nil {
		return nil, err
	}

	out := make([]models.UserInfo, 0, len(users))
	for _, u := range users {
		info := u.Info(nil)
		createdAt := u.CreatedAt
		info.CreatedAt = &createdAt
		out = append(out, *info)
	}
	return out, nil
}

// Admins returns the ADMIN users of an organization, oldest first
func (s *Service) Admins(ctx context.Context, orgID int) ([]*User, error) {
	return s.query(ctx, entsql.And(
		entsql.EQ("organization_id", orgID),
		entsql.EQ("role", domain.RoleAdmin),
	), "id")
}

// Get returns the user with id
func (s *Service) Get(ctx context.Context, id int) (*User, error) {
	users, err := s.query(ctx, entsql.EQ("id", id), "id")
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, database.ErrNotFound
	}
	return users[0], nil
}

func (s *Service) query(ctx context.Context, p *entsql.Predicate, orderBy string) ([]*User, error) {
	var users []*User
	err := database.Query(ctx, s.db.Driver, s.db.Builder().
		Select(columns...).
		From(entsql.Table(database.UsersTable)).
		Where(p).
		OrderBy(orderBy), func(rows *entsql.Rows) error {
		u, err := scan(rows)
		if err != nil {
			return err
		}
		users = append(users, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}

func (s *Service) getByEmail(ctx context.Context, eq dialect.ExecQuerier, email string) (*User, error) {
	var user *User
	err := database.Query(ctx, eq, s.db.Builder().
		Select(columns...).
		From(entsql.Table(database.UsersTable)).
		Where(entsql.EQ("email", email)).
		Limit(1), func(rows *entsql.Rows) error {
		u, err := scan(rows)
		user = u
		return err
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, database.ErrNotFound
	}
	return user, nil
}

func (s *Service) insert(ctx context.Context, eq dialect.ExecQuerier, name, email, hash, role string, orgID int) (*User, error) {
	now := s.now().UTC()
	id, err := database.InsertID(ctx, eq, s.db.Builder().
		Insert(database.UsersTable).
		Columns("name", "email", "password_hash", "role", "organization_id", "created_at", "updated_at").
		Values(name, email, hash, role, orgID, now, now))
	if err != nil {
		return nil, err
	}
	return &User{
		ID:             id,
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		OrganizationID: &orgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *Service) organizationOf(ctx context.Context, user *User) (*organization.Organization, error) {
	if user.OrganizationID == nil {
		return nil, nil
	}
	org, err := s.orgs.Get(ctx, *user.OrganizationID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	return org, nil
}

func (s *Service) issueToken(user *User) (string, error) {
	token, err := auth.GenerateJWT(auth.Identity{
		UserID:         user.ID,
		Email:          user.Email,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
	}, s.jwtSecret, s.jwtExpirationHours)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

// sendWelcome is best-effort: failures are logged and never returned.
func (s *Service) sendWelcome(ctx context.Context, user *User, org *organization.Organization) {
	if s.email == nil {
		return
	}
	orgName := ""
	if org != nil {
		orgName = org.Name
	}
	if err := s.email.SendWelcomeEmail(ctx, user.Email, user.Name, orgName); err != nil {
		s.log.Warn("failed to send welcome email", "user_id", user.ID, "error", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func scan(rows *entsql.Rows) (*User, error) {
	var (
		u     User
		orgID sql.NullInt64
	)
	if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &orgID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if orgID.Valid {
		id := int(orgID.Int64)
		u.OrganizationID = &id
	}
	return &u, nil
}
