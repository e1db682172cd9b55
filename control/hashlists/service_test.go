// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package hashlists_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/campaigns"
	"ouroboros.dev/ouroboros/control/controltest"
	"ouroboros.dev/ouroboros/control/events"
	"ouroboros.dev/ouroboros/control/hashlists"
	"ouroboros.dev/ouroboros/control/problems"
	"ouroboros.dev/ouroboros/internal/testcontext"
)

func newService(t *testing.T) (*hashlists.Service, *controltest.DB, *accounts.User, *accounts.Project) {
	log := zaptest.NewLogger(t)
	db := controltest.New()
	auth := accounts.NewService(log.Named("accounts"), db.Accounts())
	bus := events.NewBus(log.Named("events"))

	project := db.AddProject("cracking")
	user := db.AddUser("operator@example.test", "ouro_testkey", false, project.ID)

	service := hashlists.NewService(log.Named("hashlists"), db.HashLists(), auth, bus)
	return service, db, user, project
}

func str(s string) *string { return &s }

func seedItems(t *testing.T, db *controltest.DB, listID int64) {
	db.AddHashItem(listID, hashlists.HashItem{
		Hash:      "5f4dcc3b5aa765d61d8327deb882cf99",
		PlainText: str("password"),
	})
	db.AddHashItem(listID, hashlists.HashItem{
		Hash:      "e10adc3949ba59abbe56e057f20f883e",
		Salt:      str("pepper"),
		PlainText: str("123456"),
	})
	db.AddHashItem(listID, hashlists.HashItem{
		Hash: "25f9e794323b453885f5181f1b624d0b",
	})
}

func TestCreateAndVisibility(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, project := newService(t)

	scoped, err := service.Create(ctx, user, hashlists.CreateParams{
		ProjectID:  &project.ID,
		Name:       "domain dump",
		HashTypeID: 1000,
	})
	require.NoError(t, err)

	global, err := service.Create(ctx, user, hashlists.CreateParams{
		Name:       "shared leaks",
		HashTypeID: 0,
	})
	require.NoError(t, err)
	require.Nil(t, global.ProjectID)

	// a list in a foreign project stays invisible
	other := db.AddProject("other")
	_, err = db.HashLists().Insert(ctx, &hashlists.HashList{ProjectID: &other.ID, Name: "hidden", HashTypeID: 0})
	require.NoError(t, err)

	listed, total, err := service.List(ctx, user, hashlists.ListOptions{Limit: 20})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	ids := []int64{}
	for _, list := range listed {
		ids = append(ids, list.ID)
	}
	require.ElementsMatch(t, []int64{scoped.ID, global.ID}, ids)
}

func TestCreateOutsideProject(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, _, project := newService(t)
	outsider := db.AddUser("outsider@example.test", "ouro_otherkey", false)

	_, err := service.Create(ctx, outsider, hashlists.CreateParams{
		ProjectID:  &project.ID,
		Name:       "nope",
		HashTypeID: 0,
	})
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 403, problem.Status)
}

func TestUpdate(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, user, project := newService(t)

	list, err := service.Create(ctx, user, hashlists.CreateParams{
		ProjectID:  &project.ID,
		Name:       "before",
		HashTypeID: 0,
	})
	require.NoError(t, err)

	unavailable := true
	updated, err := service.Update(ctx, user, list.ID, hashlists.UpdateParams{
		Name:          str("after"),
		IsUnavailable: &unavailable,
	})
	require.NoError(t, err)
	require.Equal(t, "after", updated.Name)
	require.True(t, updated.IsUnavailable)
}

func TestDeleteReferencedByCampaign(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, project := newService(t)

	list, err := service.Create(ctx, user, hashlists.CreateParams{
		ProjectID:  &project.ID,
		Name:       "in use",
		HashTypeID: 0,
	})
	require.NoError(t, err)

	campaign, err := db.Campaigns().Insert(ctx, &campaigns.Campaign{
		ProjectID:  project.ID,
		HashListID: list.ID,
		Name:       "spring audit",
		State:      campaigns.StateDraft,
	})
	require.NoError(t, err)

	err = service.Delete(ctx, user, list.ID)
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 400, problem.Status)
	require.Contains(t, problem.Detail, "spring audit")

	// dropping the campaign unblocks deletion
	require.NoError(t, db.Campaigns().Delete(ctx, campaign.ID))
	require.NoError(t, service.Delete(ctx, user, list.ID))

	_, err = service.Get(ctx, user, list.ID)
	require.Error(t, err)
	problem, ok = problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 404, problem.Status)
}

func TestItemsFiltering(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, project := newService(t)

	list, err := service.Create(ctx, user, hashlists.CreateParams{
		ProjectID:  &project.ID,
		Name:       "dump",
		HashTypeID: 0,
	})
	require.NoError(t, err)
	seedItems(t, db, list.ID)

	items, total, err := service.Items(ctx, user, list.ID, hashlists.ItemsOptions{
		Status: hashlists.StatusCracked,
		Limit:  20,
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	for _, item := range items {
		require.True(t, item.Cracked())
	}

	_, total, err = service.Items(ctx, user, list.ID, hashlists.ItemsOptions{
		Status: hashlists.StatusUncracked,
		Limit:  20,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	_, total, err = service.Items(ctx, user, list.ID, hashlists.ItemsOptions{
		Search: "password",
		Limit:  20,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}

func TestExportPlaintext(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, project := newService(t)

	list, err := service.Create(ctx, user, hashlists.CreateParams{
		ProjectID:  &project.ID,
		Name:       "dump",
		HashTypeID: 0,
	})
	require.NoError(t, err)
	seedItems(t, db, list.ID)

	export, err := service.ExportPlaintext(ctx, user, list.ID)
	require.NoError(t, err)
	require.Equal(t, "plaintext", export.Format)
	require.Equal(t, int64(3), export.TotalItems)
	require.Equal(t, int64(2), export.CrackedCount)
	require.Equal(t, "password\n123456", export.Content)
}

func TestExportPotfile(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, project := newService(t)

	list, err := service.Create(ctx, user, hashlists.CreateParams{
		ProjectID:  &project.ID,
		Name:       "dump",
		HashTypeID: 0,
	})
	require.NoError(t, err)
	seedItems(t, db, list.ID)

	export, err := service.ExportPotfile(ctx, user, list.ID)
	require.NoError(t, err)
	require.Equal(t, "potfile", export.Format)
	require.Equal(t,
		"5f4dcc3b5aa765d61d8327deb882cf99:password\n"+
			"e10adc3949ba59abbe56e057f20f883e:pepper:123456",
		export.Content)
}

func TestExportCSV(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, user, project := newService(t)

	list, err := service.Create(ctx, user, hashlists.CreateParams{
		ProjectID:  &project.ID,
		Name:       "dump",
		HashTypeID: 0,
	})
	require.NoError(t, err)
	seedItems(t, db, list.ID)

	export, err := service.ExportCSV(ctx, user, list.ID, true)
	require.NoError(t, err)
	require.Equal(t, "csv", export.Format)
	require.Contains(t, export.Content, "id,hash,salt,plaintext,status\n")
	require.Contains(t, export.Content, ",uncracked\n")
	require.Contains(t, export.Content, "pepper,123456,cracked\n")

	crackedOnly, err := service.ExportCSV(ctx, user, list.ID, false)
	require.NoError(t, err)
	require.NotContains(t, crackedOnly.Content, "uncracked")
}
