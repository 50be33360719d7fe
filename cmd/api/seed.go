package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jordanlanch/assetdesk/config"
	"github.com/jordanlanch/assetdesk/pkg/container"
	"github.com/jordanlanch/assetdesk/pkg/database"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/logger"
	"github.com/jordanlanch/assetdesk/pkg/models"
	"github.com/jordanlanch/assetdesk/pkg/organization"
	"github.com/jordanlanch/assetdesk/pkg/plans"
	"github.com/jordanlanch/assetdesk/pkg/testdata"
)

// SeedCmd loads the sample organizations
type SeedCmd struct {
	ExtraAssets int   `help:"Generated assets added to each paid organization." default:"10"`
	Tickets     int   `help:"Sample tickets filed per organization." default:"3"`
	Seed        int64 `help:"Faker seed, 0 picks a random one." default:"0"`
}

// sampleOrganization describes one seeded tenant
type sampleOrganization struct {
	Name   string
	Slug   string
	Domain string
	Tier   plans.Tier
}

var sampleOrganizations = []sampleOrganization{
	{Name: "Acme Corp", Slug: "acme-corp", Domain: "acme.test", Tier: plans.Pro},
	{Name: "Tech Startup", Slug: "tech-startup", Domain: "techstartup.test", Tier: plans.Free},
}

// seedResult counts what seedOrganization created
type seedResult struct {
	OrganizationID int
	Skipped        bool
	Users          int
	Assets         int
	Tickets        int
}

// Run seeds every sample organization that does not exist yet
func (s *SeedCmd) Run(ctx context.Context, cfg *config.Config) error {
	// Seeding never sends mail or touches the cache
	cfg.SendGridAPIKey = ""
	cfg.RedisURL = ""

	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	deps, err := container.Open(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	c := container.New(cfg, deps)
	defer c.Close()

	log.Println("🌱 Seeding sample data...")

	gen := testdata.New(s.Seed)
	for _, sample := range sampleOrganizations {
		res, err := seedOrganization(ctx, c, gen, sample, s.ExtraAssets, s.Tickets)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", sample.Slug, err)
		}
		if res.Skipped {
			log.Printf("⏭️  %s already exists, skipping", sample.Slug)
			continue
		}
		log.Printf("✅ %s (%s): %d users, %d assets, %d tickets",
			sample.Slug, sample.Tier, res.Users, res.Assets, res.Tickets)
	}

	log.Printf("🔑 Sign in as admin@<domain> / %s", testdata.DefaultPassword)
	return nil
}

// seedOrganization creates the organization with an admin, an employee, assets and tickets.
// An existing slug is left untouched.
func seedOrganization(ctx context.Context, c *container.Container, gen *testdata.Generator, sample sampleOrganization, extraAssets, ticketCount int) (*seedResult, error) {
	if org, err := c.OrganizationService.GetBySlug(ctx, sample.Slug); err == nil {
		return &seedResult{OrganizationID: org.ID, Skipped: true}, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	org, err := c.OrganizationService.Create(ctx, sample.Name, sample.Slug)
	if err != nil {
		return nil, err
	}
	res := &seedResult{OrganizationID: org.ID}

	if sample.Tier != plans.Free {
		tier := string(sample.Tier)
		status := plans.StatusActive
		periodEnd := time.Now().UTC().AddDate(0, 1, 0)
		err := c.OrganizationService.UpdateSubscription(ctx, org.ID, organization.SubscriptionUpdate{
			Tier:             &tier,
			Status:           &status,
			CurrentPeriodEnd: &periodEnd,
		})
		if err != nil {
			return nil, err
		}
	}

	admin, err := c.UserService.AddMember(ctx, org.ID, domain.RoleAdmin, models.InviteRequest{
		Name:     "Admin User",
		Email:    "admin@" + sample.Domain,
		Password: testdata.DefaultPassword,
	})
	if err != nil {
		return nil, err
	}
	employee, err := c.UserService.AddMember(ctx, org.ID, domain.RoleEmployee, models.InviteRequest{
		Name:     "Employee User",
		Email:    "employee@" + sample.Domain,
		Password: testdata.DefaultPassword,
	})
	if err != nil {
		return nil, err
	}
	res.Users = 2

	requests := testdata.CanonicalAssets(sample.Slug)
	if sample.Tier != plans.Free {
		requests = append(requests, gen.Assets(testdata.AssetGeneratorConfig{
			Count:         extraAssets,
			SerialPrefix:  sample.Slug,
			RepairChance:  0.15,
			RetiredChance: 0.05,
		})...)
	}

	var created []models.CreateAssetRequest
	var assetIDs []int
	for _, req := range requests {
		asset, err := c.AssetService.Create(ctx, org.ID, req)
		if err != nil {
			return nil, err
		}
		created = append(created, req)
		assetIDs = append(assetIDs, asset.ID)
	}
	res.Assets = len(assetIDs)

	// One open ticket per asset, alternating reporters
	reporters := []int{employee.ID, admin.ID}
	for i := 0; i < ticketCount && i < len(assetIDs); i++ {
		_, err := c.TicketService.Create(ctx, org.ID, reporters[i%len(reporters)], models.CreateTicketRequest{
			Description: gen.Failure(created[i].Type),
			AssetID:     models.ID(assetIDs[i]),
		})
		if err != nil {
			return nil, err
		}
		res.Tickets++
	}

	return res, nil
}
