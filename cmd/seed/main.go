package main

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/repository"
	"github.com/noah-isme/supervisi-api/internal/service"
	"github.com/noah-isme/supervisi-api/pkg/config"
	"github.com/noah-isme/supervisi-api/pkg/database"
	"github.com/noah-isme/supervisi-api/pkg/logger"
)

const seedPassword = "password123"

type seedAccount struct {
	Email string
	Name  string
	Role  models.UserRole
}

var (
	adminAccount      = seedAccount{Email: "admin@moklet.org", Name: "Administrator", Role: models.RoleAdmin}
	supervisorAccount = seedAccount{Email: "supervisor@moklet.org", Name: "John Supervisor", Role: models.RoleSupervisor}
	teacherAccount    = seedAccount{Email: "teacher@moklet.org", Name: "Jane Teacher", Role: models.RoleTeacher}
)

type seeder struct {
	users       *repository.UserRepository
	teachers    *repository.TeacherRepository
	supervisors *repository.SupervisorRepository
	userSvc     *service.UserService
	teacherSvc  *service.TeacherService
	supSvc      *service.SupervisorService
	logger      *zap.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db.DB, logr); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}

	validate := service.NewValidator()
	users := repository.NewUserRepository(db)
	teachers := repository.NewTeacherRepository(db)
	supervisors := repository.NewSupervisorRepository(db)
	s := &seeder{
		users:       users,
		teachers:    teachers,
		supervisors: supervisors,
		userSvc:     service.NewUserService(users, validate, nil, logr),
		teacherSvc:  service.NewTeacherService(teachers, users, validate, logr),
		supSvc:      service.NewSupervisorService(supervisors, users, teachers, validate, logr),
		logger:      logr,
	}
	if err := s.run(ctx); err != nil {
		logr.Fatal("seed failed", zap.Error(err))
	}
	logr.Info("seed data created successfully")
}

func (s *seeder) run(ctx context.Context) error {
	if _, err := s.account(ctx, adminAccount); err != nil {
		return err
	}

	supUser, err := s.account(ctx, supervisorAccount)
	if err != nil {
		return err
	}
	supervisor, err := s.supervisors.FindByUserID(ctx, supUser.ID)
	if errors.Is(err, sql.ErrNoRows) {
		specialization := "Mathematics"
		supervisor, err = s.supSvc.Create(ctx, models.CreateSupervisorRequest{
			UserID:         supUser.ID,
			NIP:            "198003012001",
			Specialization: &specialization,
		})
	}
	if err != nil {
		return err
	}

	teacherUser, err := s.account(ctx, teacherAccount)
	if err != nil {
		return err
	}
	teacher, err := s.teachers.FindByUserID(ctx, teacherUser.ID)
	if errors.Is(err, sql.ErrNoRows) {
		classroom := "10A"
		teacher, err = s.teacherSvc.Create(ctx, models.CreateTeacherRequest{
			UserID:    teacherUser.ID,
			NIP:       "198504022005",
			Subject:   "Mathematics",
			Classroom: &classroom,
		})
	}
	if err != nil {
		return err
	}

	_, err = s.supSvc.AssignTeachers(ctx, supervisor.ID, models.AssignTeachersRequest{TeacherIDs: []string{teacher.ID}})
	return err
}

// account returns the existing user for the email or creates it.
func (s *seeder) account(ctx context.Context, acc seedAccount) (*models.User, error) {
	existing, err := s.users.FindByEmail(ctx, acc.Email)
	if err == nil {
		s.logger.Info("account exists, skipping", zap.String("email", acc.Email))
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	user, err := s.userSvc.Create(ctx, models.CreateUserRequest{
		Email:    acc.Email,
		Password: seedPassword,
		Name:     acc.Name,
		Role:     acc.Role,
	}, models.RequestMeta{UserAgent: "seed"})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account created", zap.String("email", acc.Email), zap.String("role", string(acc.Role)))
	return user, nil
}
