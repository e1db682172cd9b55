// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package attacks_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/attacks"
	"ouroboros.dev/ouroboros/control/campaigns"
	"ouroboros.dev/ouroboros/control/controltest"
	"ouroboros.dev/ouroboros/control/events"
	"ouroboros.dev/ouroboros/control/hashlists"
	"ouroboros.dev/ouroboros/control/problems"
	"ouroboros.dev/ouroboros/control/resources"
	"ouroboros.dev/ouroboros/internal/testcontext"
)

type fixture struct {
	service  *attacks.Service
	db       *controltest.DB
	user     *accounts.User
	campaign *campaigns.Campaign
}

func newFixture(t *testing.T, ctx *testcontext.Context) fixture {
	log := zaptest.NewLogger(t)
	db := controltest.New()
	auth := accounts.NewService(log.Named("accounts"), db.Accounts())
	bus := events.NewBus(log.Named("events"))

	project := db.AddProject("cracking")
	user := db.AddUser("operator@example.test", "ouro_testkey", false, project.ID)

	list, err := db.HashLists().Insert(ctx, &hashlists.HashList{
		ProjectID:  &project.ID,
		Name:       "dump",
		HashTypeID: 0,
	})
	require.NoError(t, err)
	campaign, err := db.Campaigns().Insert(ctx, &campaigns.Campaign{
		ProjectID:  project.ID,
		HashListID: list.ID,
		Name:       "audit",
		State:      campaigns.StateDraft,
	})
	require.NoError(t, err)

	service := attacks.NewService(log.Named("attacks"),
		db.Attacks(), db.Campaigns(), db.Resources(), auth, bus)
	return fixture{service: service, db: db, user: user, campaign: campaign}
}

func (f fixture) addWordList(t *testing.T, ctx *testcontext.Context, uploaded bool) uuid.UUID {
	id := uuid.New()
	require.NoError(t, f.db.Resources().Insert(ctx, &resources.Resource{
		ID:         id,
		FileName:   "rockyou.txt",
		Type:       resources.TypeWordList,
		IsUploaded: uploaded,
		LineCount:  14344384,
	}))
	return id
}

func TestCreateAppendsPosition(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	f := newFixture(t, ctx)
	wordList := f.addWordList(t, ctx, true)

	first, err := f.service.Create(ctx, f.user, attacks.CreateParams{
		CampaignID: f.campaign.ID,
		Name:       "dictionary pass",
		Mode:       attacks.ModeDictionary,
		WordListID: &wordList,
	})
	require.NoError(t, err)
	require.Equal(t, attacks.StatePending, first.State)

	second, err := f.service.Create(ctx, f.user, attacks.CreateParams{
		CampaignID: f.campaign.ID,
		Name:       "mask sweep",
		Mode:       attacks.ModeMask,
		Mask:       "?d?d?d?d",
	})
	require.NoError(t, err)
	require.Equal(t, first.Position+1, second.Position)
}

func TestCreateConfigValidation(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	f := newFixture(t, ctx)

	cases := []attacks.CreateParams{
		{CampaignID: f.campaign.ID, Name: "no list", Mode: attacks.ModeDictionary},
		{CampaignID: f.campaign.ID, Name: "no mask", Mode: attacks.ModeMask},
		{CampaignID: f.campaign.ID, Name: "bogus", Mode: attacks.Mode("bogus")},
	}
	for _, params := range cases {
		_, err := f.service.Create(ctx, f.user, params)
		require.Error(t, err)
		problem, ok := problems.Is(err)
		require.True(t, ok)
		require.Equal(t, 400, problem.Status)
		require.Equal(t, "invalid-attack-config", problem.Type)
	}

	// referenced resources must exist
	missing := uuid.New()
	_, err := f.service.Create(ctx, f.user, attacks.CreateParams{
		CampaignID: f.campaign.ID,
		Name:       "dangling",
		Mode:       attacks.ModeDictionary,
		WordListID: &missing,
	})
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 404, problem.Status)
}

func TestStartRequiresUploadedResources(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	f := newFixture(t, ctx)
	wordList := f.addWordList(t, ctx, false)

	attack, err := f.service.Create(ctx, f.user, attacks.CreateParams{
		CampaignID: f.campaign.ID,
		Name:       "dictionary pass",
		Mode:       attacks.ModeDictionary,
		WordListID: &wordList,
	})
	require.NoError(t, err)

	_, err = f.service.RunAction(ctx, f.user, attack.ID, "start")
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, "invalid-resource-state", problem.Type)

	resource, err := f.db.Resources().Get(ctx, wordList)
	require.NoError(t, err)
	resource.IsUploaded = true
	require.NoError(t, f.db.Resources().Update(ctx, resource))

	started, err := f.service.RunAction(ctx, f.user, attack.ID, "start")
	require.NoError(t, err)
	require.Equal(t, attacks.StateRunning, started.State)

	// the attack lifecycle is strict, starting twice conflicts
	_, err = f.service.RunAction(ctx, f.user, attack.ID, "start")
	require.Error(t, err)
	problem, ok = problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 409, problem.Status)
	require.Equal(t, "invalid-state-transition", problem.Type)
}

func TestUpdateAndDeleteBlockedWhileRunning(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	f := newFixture(t, ctx)

	attack, err := f.service.Create(ctx, f.user, attacks.CreateParams{
		CampaignID: f.campaign.ID,
		Name:       "mask sweep",
		Mode:       attacks.ModeMask,
		Mask:       "?d?d?d?d",
	})
	require.NoError(t, err)
	_, err = f.db.Attacks().UpdateState(ctx, attack.ID, attacks.StateRunning)
	require.NoError(t, err)

	name := "renamed"
	_, err = f.service.Update(ctx, f.user, attack.ID, attacks.UpdateParams{Name: &name})
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 400, problem.Status)

	err = f.service.Delete(ctx, f.user, attack.ID)
	require.Error(t, err)
	problem, ok = problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 400, problem.Status)

	// pausing unblocks both
	_, err = f.service.RunAction(ctx, f.user, attack.ID, "pause")
	require.NoError(t, err)

	updated, err := f.service.Update(ctx, f.user, attack.ID, attacks.UpdateParams{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)

	require.NoError(t, f.service.Delete(ctx, f.user, attack.ID))
	_, err = f.service.Get(ctx, f.user, attack.ID)
	require.Error(t, err)
}

func TestValidateClassifiesResources(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	f := newFixture(t, ctx)
	missing := uuid.New()

	result, err := f.service.Validate(ctx, f.user, attacks.ValidateParams{
		CampaignID: f.campaign.ID,
		Mode:       attacks.ModeDictionary,
		WordListID: &missing,
	})
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Len(t, result.ResourceAvailability, 1)
	require.Equal(t, "not_found", result.ResourceAvailability[0].Status)

	// present but pending resources only warn
	pending := f.addWordList(t, ctx, false)
	result, err = f.service.Validate(ctx, f.user, attacks.ValidateParams{
		CampaignID: f.campaign.ID,
		Mode:       attacks.ModeDictionary,
		WordListID: &pending,
	})
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	require.Equal(t, "unavailable", result.ResourceAvailability[0].Status)

	uploaded := f.addWordList(t, ctx, true)
	result, err = f.service.Validate(ctx, f.user, attacks.ValidateParams{
		CampaignID: f.campaign.ID,
		Mode:       attacks.ModeDictionary,
		WordListID: &uploaded,
	})
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Empty(t, result.Warnings)
	require.Equal(t, "available", result.ResourceAvailability[0].Status)
	require.Equal(t, "rockyou.txt", result.ResourceAvailability[0].Name)
}

func TestSystemTransitions(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	f := newFixture(t, ctx)

	attack, err := f.service.Create(ctx, f.user, attacks.CreateParams{
		CampaignID: f.campaign.ID,
		Name:       "mask sweep",
		Mode:       attacks.ModeMask,
		Mask:       "?d?d?d?d",
	})
	require.NoError(t, err)

	// completion is only reachable from running
	err = f.service.MarkCompleted(ctx, attack.ID)
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 409, problem.Status)

	_, err = f.db.Attacks().UpdateState(ctx, attack.ID, attacks.StateRunning)
	require.NoError(t, err)
	require.NoError(t, f.service.MarkCompleted(ctx, attack.ID))

	done, err := f.service.Get(ctx, f.user, attack.ID)
	require.NoError(t, err)
	require.Equal(t, attacks.StateCompleted, done.State)

	// completed is terminal
	err = f.service.MarkFailed(ctx, attack.ID)
	require.Error(t, err)
	problem, ok = problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 409, problem.Status)
}
