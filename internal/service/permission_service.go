package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"storeadmin/api/internal/ids"
	"storeadmin/api/internal/models"
	"storeadmin/api/internal/repository"
)

type catalogEntry struct {
	resource    models.Resource
	action      models.Action
	name        string
	description string
}

// catalog is the permission set seeded on a fresh install.
var catalog = []catalogEntry{
	{models.ResourceDashboard, models.ActionView, "Voir le tableau de bord", "Accès au tableau de bord principal"},

	{models.ResourceProducts, models.ActionView, "Voir les produits", "Consulter la liste des produits"},
	{models.ResourceProducts, models.ActionCreate, "Créer des produits", "Ajouter de nouveaux produits"},
	{models.ResourceProducts, models.ActionUpdate, "Modifier les produits", "Modifier les produits existants"},
	{models.ResourceProducts, models.ActionDelete, "Supprimer les produits", "Supprimer des produits"},

	{models.ResourceCategories, models.ActionView, "Voir les catégories", "Consulter la liste des catégories"},
	{models.ResourceCategories, models.ActionCreate, "Créer des catégories", "Ajouter de nouvelles catégories"},
	{models.ResourceCategories, models.ActionUpdate, "Modifier les catégories", "Modifier les catégories existantes"},
	{models.ResourceCategories, models.ActionDelete, "Supprimer les catégories", "Supprimer des catégories"},

	{models.ResourceUsers, models.ActionView, "Voir les utilisateurs", "Consulter la liste des utilisateurs"},
	{models.ResourceUsers, models.ActionCreate, "Créer des utilisateurs", "Ajouter de nouveaux utilisateurs"},
	{models.ResourceUsers, models.ActionUpdate, "Modifier les utilisateurs", "Modifier les utilisateurs existants"},
	{models.ResourceUsers, models.ActionDelete, "Supprimer les utilisateurs", "Supprimer des utilisateurs"},

	{models.ResourceOrders, models.ActionView, "Voir les commandes", "Consulter la liste des commandes"},
	{models.ResourceOrders, models.ActionUpdate, "Modifier les commandes", "Modifier le statut des commandes"},

	{models.ResourceSettings, models.ActionView, "Voir les paramètres", "Accès aux paramètres système"},
	{models.ResourceSettings, models.ActionUpdate, "Modifier les paramètres", "Modifier les paramètres système"},

	{models.ResourceNews, models.ActionView, "Voir les actualités", "Consulter la liste des actualités et événements"},
	{models.ResourceNews, models.ActionCreate, "Créer des actualités", "Ajouter de nouvelles actualités et événements"},
	{models.ResourceNews, models.ActionUpdate, "Modifier les actualités", "Modifier les actualités et événements existants"},
	{models.ResourceNews, models.ActionDelete, "Supprimer les actualités", "Supprimer des actualités et événements"},

	{models.ResourcePartners, models.ActionView, "Voir les partenaires", "Consulter la liste des partenaires humanitaires"},
	{models.ResourcePartners, models.ActionCreate, "Créer des partenaires", "Ajouter de nouveaux partenaires"},
	{models.ResourcePartners, models.ActionUpdate, "Modifier les partenaires", "Modifier les partenaires existants"},
	{models.ResourcePartners, models.ActionDelete, "Supprimer les partenaires", "Supprimer des partenaires"},

	{models.ResourceTestimonials, models.ActionView, "Voir les témoignages", "Consulter la liste des témoignages clients"},
	{models.ResourceTestimonials, models.ActionCreate, "Créer des témoignages", "Ajouter de nouveaux témoignages"},
	{models.ResourceTestimonials, models.ActionUpdate, "Modifier les témoignages", "Modifier les témoignages existants"},
	{models.ResourceTestimonials, models.ActionDelete, "Supprimer les témoignages", "Supprimer des témoignages"},

	{models.ResourceContactMessages, models.ActionView, "Voir les messages", "Consulter les messages de contact"},
	{models.ResourceContactMessages, models.ActionUpdate, "Traiter les messages", "Marquer les messages comme lus/traités"},
	{models.ResourceContactMessages, models.ActionDelete, "Supprimer les messages", "Supprimer des messages de contact"},

	{models.ResourceAuth, models.ActionView, "Voir les sessions", "Consulter les sessions utilisateurs"},
	{models.ResourceAuth, models.ActionUpdate, "Gérer les accès", "Révoquer des sessions et gérer les accès"},

	{models.ResourcePermissions, models.ActionView, "Voir les permissions", "Consulter les permissions disponibles"},
	{models.ResourcePermissions, models.ActionUpdate, "Gérer les permissions", "Attribuer et révoquer des permissions"},
}

// Catalog returns fresh permission records for every seeded entry.
func Catalog() []models.Permission {
	perms := make([]models.Permission, 0, len(catalog))
	for _, entry := range catalog {
		perms = append(perms, models.Permission{
			ID:          ids.New(),
			Resource:    entry.resource,
			Action:      entry.action,
			Name:        entry.name,
			Description: entry.description,
		})
	}
	return perms
}

type PermissionService struct {
	perms    PermissionStore
	users    UserStore
	security *SecurityService
	log      zerolog.Logger
}

func NewPermissionService(perms PermissionStore, users UserStore, securitySvc *SecurityService, log zerolog.Logger) *PermissionService {
	return &PermissionService{
		perms:    perms,
		users:    users,
		security: securitySvc,
		log:      log,
	}
}

// Seed inserts catalog entries that are not present yet and reports how many were added.
func (s *PermissionService) Seed(ctx context.Context) (int, error) {
	added, err := s.perms.Seed(ctx, Catalog())
	if err != nil {
		return 0, err
	}
	s.log.Info().Int("added", added).Int("catalog", len(catalog)).Msg("permissions seeded")
	return added, nil
}

func (s *PermissionService) List(ctx context.Context) ([]models.Permission, error) {
	return s.perms.ListAll(ctx)
}

func (s *PermissionService) UserPermissions(ctx context.Context, userID string) ([]models.Permission, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, notFound("User not found")
		}
		return nil, err
	}
	return s.perms.ListGrantedForUser(ctx, userID)
}

func (s *PermissionService) HasPermission(ctx context.Context, userID string, resource models.Resource, action models.Action) (bool, error) {
	return s.perms.HasGrant(ctx, userID, resource, action)
}

// UpdatePermissions replaces the full grant set of the user. Omitted
// permissions are revoked; an empty list revokes everything.
func (s *PermissionService) UpdatePermissions(ctx context.Context, userID string, permissionIDs []string, actorID string, client models.ClientContext) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return notFound("User not found")
		}
		return err
	}

	unique := dedupe(permissionIDs)
	if err := s.perms.ReplaceGrants(ctx, userID, unique); err != nil {
		if errors.Is(err, repository.ErrUnknownPermission) {
			return badRequest("One or more permissions do not exist")
		}
		return err
	}

	s.security.LogEvent(ctx, Event{
		UserID:      userID,
		Type:        models.EventPermissionChanged,
		Risk:        models.RiskMedium,
		Description: "User permissions replaced",
		Client:      client,
		Metadata:    map[string]any{"permissionIds": unique, "changedBy": actorID},
	})
	return nil
}

// Authorize decides whether actor may proceed given the route requirements.
// Super admins bypass grants. Every other role, admin included, needs an
// explicit grant for each requirement.
func (s *PermissionService) Authorize(ctx context.Context, actor *models.User, reqs []models.Requirement) (bool, error) {
	if len(reqs) == 0 {
		return true, nil
	}
	if actor == nil {
		return false, nil
	}
	if actor.Role == models.UserRoleSuperAdmin {
		return true, nil
	}

	for _, req := range reqs {
		ok, err := s.perms.HasGrant(ctx, actor.ID, req.Resource, req.Action)
		if err != nil {
			return false, err
		}
		if !ok {
			s.log.Debug().
				Str("user_id", actor.ID).
				Str("role", string(actor.Role)).
				Str("missing", req.String()).
				Msg("permission denied")
			return false, nil
		}
	}
	return true, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
