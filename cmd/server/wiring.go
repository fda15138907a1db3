package main

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"ourpainthub/internal/auth"
	"ourpainthub/internal/config"
	"ourpainthub/internal/service"
	"ourpainthub/internal/store/memory"
	"ourpainthub/internal/store/postgres"
)

// backend is the set of stores the services run on, backed either by
// Postgres or by the in-memory store.
type backend struct {
	users       service.UsersStore
	sessions    service.SessionsStore
	external    service.ExternalAccountsStore
	bootstrap   service.AdminBootstrapStore
	adminUsers  service.AdminUsersStore
	directory   service.UserDirectoryStore
	profiles    service.ProfileStore
	friendships service.FriendshipsStore
	projects    service.ProjectsStore
	shares      service.SharesStore
	articles    service.ArticlesStore
	releases    service.ReleasesStore
	questions   service.QuestionsStore
	audit       service.AuditStore
	tokens      service.NotificationTokensStore
}

func postgresBackend(pool *pgxpool.Pool) backend {
	users := postgres.NewUsersStore(pool)
	return backend{
		users:       users,
		sessions:    postgres.NewSessionsStore(pool),
		external:    postgres.NewExternalAccountsStore(pool),
		bootstrap:   users,
		adminUsers:  users,
		directory:   users,
		profiles:    postgres.NewProfilesStore(pool),
		friendships: postgres.NewFriendshipsStore(pool),
		projects:    postgres.NewProjectsStore(pool),
		shares:      postgres.NewSharesStore(pool),
		articles:    postgres.NewArticlesStore(pool),
		releases:    postgres.NewReleasesStore(pool),
		questions:   postgres.NewQuestionsStore(pool),
		audit:       postgres.NewAuditStore(pool),
		tokens:      postgres.NewNotificationTokensStore(pool),
	}
}

func memoryBackend(st *memory.Store) backend {
	return backend{
		users:       st,
		sessions:    st,
		external:    st,
		bootstrap:   st,
		adminUsers:  st,
		directory:   st,
		profiles:    st,
		friendships: st,
		projects:    st,
		shares:      st,
		articles:    st,
		releases:    st,
		questions:   st,
		audit:       st,
		tokens:      st,
	}
}

type services struct {
	auth          *service.AuthService
	profile       *service.ProfileService
	users         *service.UsersService
	friends       *service.FriendsService
	projects      *service.ProjectsService
	content       *service.ContentService
	admin         *service.AdminService
	notifications *service.NotificationService
}

func (b backend) services(cfg config.Config, logger *slog.Logger) services {
	admins := service.AdminPolicy{Emails: cfg.AdminEmails}
	audit := &service.AuditLog{Store: b.audit, Logger: logger}

	return services{
		auth: &service.AuthService{
			Users:    b.users,
			Sessions: b.sessions,
			External: b.external,
			Verifier: auth.IDTokenVerifier{
				GoogleClientID: cfg.GoogleClientID,
				AppleServiceID: cfg.AppleServiceID,
			},
			Admins:     admins,
			Passwords:  auth.PasswordPolicy{MinEntropy: cfg.PasswordMinEntropy},
			Audit:      audit,
			SessionTTL: cfg.SessionTTL,
		},
		profile: &service.ProfileService{Profiles: b.profiles, Friends: b.friendships, Audit: audit},
		users:   &service.UsersService{Store: b.directory},
		friends: &service.FriendsService{
			Users:       b.users,
			Friendships: b.friendships,
			Audit:       audit,
			Logger:      logger,
		},
		projects: &service.ProjectsService{
			Projects: b.projects,
			Shares:   b.shares,
			Users:    b.users,
			Friends:  b.friendships,
			Audit:    audit,
			Logger:   logger,
			MaxBytes: cfg.MaxProjectBytes,
		},
		content: &service.ContentService{
			Articles:  b.articles,
			Releases:  b.releases,
			Questions: b.questions,
			Admins:    admins,
			Audit:     audit,
		},
		admin: &service.AdminService{Users: b.adminUsers, Log: b.audit, Admins: admins, Audit: audit},
		notifications: &service.NotificationService{
			Tokens: b.tokens,
			Users:  b.users,
			Logger: logger,
		},
	}
}
