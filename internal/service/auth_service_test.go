package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medrota/rota-api/internal/models"
	"github.com/medrota/rota-api/pkg/config"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

type adminStoreStub struct {
	admins        map[string]models.Admin
	lastLoginSet  map[string]time.Time
	lastLoginFail bool
}

func (s *adminStoreStub) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	for _, admin := range s.admins {
		if admin.Email == email {
			copied := admin
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *adminStoreStub) FindByID(ctx context.Context, id string) (*models.Admin, error) {
	if admin, ok := s.admins[id]; ok {
		copied := admin
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *adminStoreStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if s.lastLoginFail {
		return sql.ErrConnDone
	}
	if s.lastLoginSet == nil {
		s.lastLoginSet = make(map[string]time.Time)
	}
	s.lastLoginSet[id] = ts
	return nil
}

func authFixture(t *testing.T) (*AuthService, *adminStoreStub, *auditStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	name := "Chief Resident"
	admins := &adminStoreStub{admins: map[string]models.Admin{
		"adm-1": {ID: "adm-1", Email: "chief@hospital.org", Name: &name, PasswordHash: string(hash), IsActive: true},
		"adm-2": {ID: "adm-2", Email: "former@hospital.org", PasswordHash: string(hash), IsActive: false},
	}}
	audit := &auditStub{}
	cfg := config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "rota-api"}
	return NewAuthService(admins, audit, cfg, nil), admins, audit
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, admins, audit := authFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "  Chief@Hospital.org ",
		Password: "hunter22",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, int64(3600), resp.ExpiresIn)
	require.Equal(t, "adm-1", resp.Admin.ID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "adm-1", claims.UserID)
	require.Equal(t, models.RoleAdmin, claims.Role)
	require.Equal(t, "chief@hospital.org", claims.Email)

	require.Contains(t, admins.lastLoginSet, "adm-1")
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionLogin, audit.logs[0].Action)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, audit := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "chief@hospital.org",
		Password: "hunter23",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	require.Empty(t, audit.logs)
}

func TestLoginUnknownEmailFailsLikeWrongPassword(t *testing.T) {
	svc, _, _ := authFixture(t)

	_, unknownErr := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@hospital.org",
		Password: "hunter22",
	})
	_, wrongErr := svc.Login(context.Background(), models.LoginRequest{
		Email:    "chief@hospital.org",
		Password: "wrong",
	})
	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	require.Equal(t, wrongErr.Error(), unknownErr.Error())
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, _, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "former@hospital.org",
		Password: "hunter22",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestLoginSurvivesLastLoginFailure(t *testing.T) {
	svc, admins, _ := authFixture(t)
	admins.lastLoginFail = true

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "chief@hospital.org",
		Password: "hunter22",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _, _ := authFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "chief@hospital.org",
		Password: "hunter22",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.ValidateToken("not-a-token")
	require.Error(t, err)
}
