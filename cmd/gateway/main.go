package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/clubhub/clubhub-backend/internal/api/http"
	"github.com/clubhub/clubhub-backend/internal/assignment"
	"github.com/clubhub/clubhub-backend/internal/audit"
	auth "github.com/clubhub/clubhub-backend/internal/auth/middleware"
	"github.com/clubhub/clubhub-backend/internal/club"
	"github.com/clubhub/clubhub-backend/internal/config"
	"github.com/clubhub/clubhub-backend/internal/db"
	"github.com/clubhub/clubhub-backend/internal/notify"
	rbac "github.com/clubhub/clubhub-backend/internal/rbac"
	"github.com/clubhub/clubhub-backend/internal/review"
	storage "github.com/clubhub/clubhub-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	if cfg.EnableLocalAuth {
		if err := db.EnsureAdmin(ctx, dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
	}
	subStore := assignment.NewSQLStore(dbh, cfg.DBDriver)
	revStore := review.NewSQLStore(dbh, cfg.DBDriver)
	clubs := club.NewSQLDirectory(dbh)
	events := audit.NewEventRepo(dbh)

	svc := review.NewService(subStore, revStore, events, notify.LogNotifier{}, review.Options{
		PerReviewer:   cfg.ReviewsPerReviewer,
		PerSubmission: cfg.ReviewersPerSub,
		MinReviewers:  cfg.MinReviewersPerGrade,
	})

	// --- Auth (local JWT for offline/dev) ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	var bs storage.BlobStore
	switch cfg.BlobDriver {
	case "fs":
		bs, err = storage.NewFSStore(cfg.BlobBasePath)
		if err != nil {
			log.Fatalf("blob store: %v", err)
		}
	default:
		log.Fatalf("unsupported blob driver: %q", cfg.BlobDriver)
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeOffline))

		// Attachments
		pr.Post("/assets", api.UploadAssetHandler(bs, cfg.PublicURL))
		pr.Get("/assets/*", api.DownloadAssetHandler(bs))

		// Clubs and membership
		pr.Post("/clubs", api.CreateClubHandler(clubs))
		pr.Get("/clubs", api.ListClubsHandler(clubs))
		pr.Get("/clubs/{clubID}/members", api.ListMembersHandler(clubs))
		pr.Post("/clubs/{clubID}/members", api.AddMemberHandler(clubs))
		pr.Delete("/clubs/{clubID}/members/{userID}", api.RemoveMemberHandler(clubs))

		// Assignments (club-level management checks live in the handlers)
		pr.Post("/clubs/{clubID}/assignments", api.CreateAssignmentHandler(subStore, clubs))
		pr.With(rbac.Require("assignment:view")).
			Get("/clubs/{clubID}/assignments", api.ListAssignmentsHandler(subStore))
		pr.With(rbac.Require("assignment:view")).
			Get("/assignments/{assignmentID}", api.GetAssignmentHandler(subStore))
		pr.Put("/assignments/{assignmentID}", api.UpdateAssignmentHandler(subStore, clubs))
		pr.Post("/assignments/{assignmentID}/retire", api.RetireAssignmentHandler(subStore, clubs))

		// Member submission flow
		pr.With(rbac.Require("submission:draft")).
			Put("/assignments/{assignmentID}/draft", api.SaveDraftHandler(subStore))
		pr.With(rbac.Require("submission:submit")).
			Post("/assignments/{assignmentID}/submit", api.SubmitHandler(subStore, events))
		pr.With(rbac.Require("submission:view-own")).
			Get("/assignments/{assignmentID}/submission", api.MySubmissionHandler(subStore))
		pr.With(rbac.Require("submission:view-own")).
			Get("/assignments/{assignmentID}/reviews", api.MyReviewsHandler(svc, subStore))
		pr.Get("/submissions/{submissionID}", api.GetSubmissionHandler(subStore, clubs))
		pr.Get("/submissions/{submissionID}/grades", api.GradeHistoryHandler(subStore, clubs))
		pr.Get("/assignments/{assignmentID}/submissions", api.ListSubmissionsHandler(subStore, clubs))

		// Peer review
		pr.With(rbac.Require("review:allocate")).
			Post("/assignments/{assignmentID}/allocate", api.AllocateHandler(svc))
		pr.With(rbac.Require("review:queue")).
			Get("/reviews/queue", api.QueueHandler(svc))
		pr.With(rbac.Require("review:queue")).
			Get("/assignments/{assignmentID}/queue", api.AssignmentQueueHandler(svc))
		pr.With(rbac.Require("review:submit")).
			Post("/reviews", api.SubmitReviewHandler(svc))
		pr.With(rbac.Require("review:amend")).
			Put("/reviews/{reviewID}", api.AmendReviewHandler(svc))
		pr.With(rbac.Require("review:view-all")).
			Get("/submissions/{submissionID}/reviews", api.ListReviewsHandler(svc))

		// Grading
		pr.With(rbac.Require("grade:finalize")).
			Post("/submissions/{submissionID}/finalize", api.FinalizeGradeHandler(svc))
		pr.With(rbac.Require("grade:override")).
			Post("/submissions/{submissionID}/override", api.OverrideGradeHandler(svc))
		pr.With(rbac.Require("grade:release")).
			Post("/submissions/{submissionID}/release", api.ReleaseGradeHandler(svc))

		// Users (organizer/admin; password changes are owner-or-manager)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh, clubs))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.RequireOwnerOr("users:manage", api.IsPathUser)).
			Post("/users/{userID}/password", api.ChangePasswordHandler(dbh))

		// Audit trail (admin)
		pr.With(rbac.Require("events:list")).
			Get("/events", api.ListEventsHandler(events))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
