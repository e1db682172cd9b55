// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package resources_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/attacks"
	"ouroboros.dev/ouroboros/control/campaigns"
	"ouroboros.dev/ouroboros/control/controltest"
	"ouroboros.dev/ouroboros/control/hashlists"
	"ouroboros.dev/ouroboros/control/events"
	"ouroboros.dev/ouroboros/control/objectstore/teststore"
	"ouroboros.dev/ouroboros/control/problems"
	"ouroboros.dev/ouroboros/control/resources"
	"ouroboros.dev/ouroboros/internal/testcontext"
)

func newService(t *testing.T) (*resources.Service, *controltest.DB, *teststore.Store, *accounts.User) {
	log := zaptest.NewLogger(t)
	db := controltest.New()
	store := teststore.New()
	auth := accounts.NewService(log.Named("accounts"), db.Accounts())
	bus := events.NewBus(log.Named("events"))

	project := db.AddProject("cracking")
	user := db.AddUser("operator@example.test", "ouro_testkey", false, project.ID)

	service := resources.NewService(log.Named("resources"), db.Resources(), store, auth, bus, resources.Config{
		UploadTimeout: time.Minute,
		PresignExpiry: time.Hour,
		MaxUploadSize: 1 << 20,
	})
	return service, db, store, user
}

func TestInitiateAndConfirmUpload(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, store, user := newService(t)

	upload, err := service.InitiateUpload(ctx, user, resources.InitiateUploadParams{
		FileName: "rockyou.txt",
		Type:     resources.TypeWordList,
	})
	require.NoError(t, err)
	require.NotEmpty(t, upload.UploadURL)
	require.Equal(t, int64(3600), upload.ExpiresInSeconds)

	resource, err := db.Resources().Get(ctx, upload.ResourceID)
	require.NoError(t, err)
	require.False(t, resource.IsUploaded)
	require.Equal(t, "utf-8", resource.LineEncoding)

	// confirming before the file arrives fails
	_, err = service.ConfirmUpload(ctx, user, upload.ResourceID)
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 400, problem.Status)

	store.Put(upload.ResourceID.String(), []byte("password\n123456\nletmein\n"))

	confirmed, err := service.ConfirmUpload(ctx, user, upload.ResourceID)
	require.NoError(t, err)
	require.True(t, confirmed.IsUploaded)
	require.Equal(t, int64(3), confirmed.LineCount)
	require.Equal(t, int64(24), confirmed.ByteSize)
	require.NotEmpty(t, confirmed.Checksum)

	// confirm is idempotent
	again, err := service.ConfirmUpload(ctx, user, upload.ResourceID)
	require.NoError(t, err)
	require.True(t, again.IsUploaded)
}

func TestInitiateUploadRejectsEphemeral(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, _, user := newService(t)

	_, err := service.InitiateUpload(ctx, user, resources.InitiateUploadParams{
		FileName: "inline.txt",
		Type:     resources.TypeEphemeralWordList,
	})
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 400, problem.Status)
}

func TestVerifyUploadKeepsRow(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, store, user := newService(t)

	// object never arrived: the verifier leaves the row for the cleanup chore
	upload, err := service.InitiateUpload(ctx, user, resources.InitiateUploadParams{
		FileName: "missing.txt",
		Type:     resources.TypeWordList,
	})
	require.NoError(t, err)

	service.VerifyUpload(ctx, upload.ResourceID)

	resource, err := db.Resources().Get(ctx, upload.ResourceID)
	require.NoError(t, err)
	require.False(t, resource.IsUploaded)

	// object arrived but confirm never did: the row is kept as well
	store.Put(upload.ResourceID.String(), []byte("data\n"))
	service.VerifyUpload(ctx, upload.ResourceID)

	_, err = db.Resources().Get(ctx, upload.ResourceID)
	require.NoError(t, err)

	// storage errors keep the row too
	store.StatError = errors.New("storage hiccup")
	service.VerifyUpload(ctx, upload.ResourceID)
	store.StatError = nil

	_, err = db.Resources().Get(ctx, upload.ResourceID)
	require.NoError(t, err)

	// a missing bucket aborts the check without touching the row
	store.Missing = true
	service.VerifyUpload(ctx, upload.ResourceID)
	store.Missing = false

	_, err = db.Resources().Get(ctx, upload.ResourceID)
	require.NoError(t, err)
}

func TestVerifyUploadMissingRow(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, _, _ := newService(t)

	// a deleted row is not an error
	service.VerifyUpload(ctx, uuid.New())
}

func TestCancelUpload(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, store, user := newService(t)

	upload, err := service.InitiateUpload(ctx, user, resources.InitiateUploadParams{
		FileName: "partial.txt",
		Type:     resources.TypeRuleList,
	})
	require.NoError(t, err)
	store.Put(upload.ResourceID.String(), []byte("partial"))

	err = service.Cancel(ctx, user, upload.ResourceID)
	require.NoError(t, err)

	_, err = db.Resources().Get(ctx, upload.ResourceID)
	require.True(t, resources.ErrNotFound.Has(err))
	require.Contains(t, store.Removed(), upload.ResourceID.String())
}

func TestCancelConfirmedUpload(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, store, user := newService(t)

	upload, err := service.InitiateUpload(ctx, user, resources.InitiateUploadParams{
		FileName: "done.txt",
		Type:     resources.TypeWordList,
	})
	require.NoError(t, err)
	store.Put(upload.ResourceID.String(), []byte("word\n"))
	_, err = service.ConfirmUpload(ctx, user, upload.ResourceID)
	require.NoError(t, err)

	err = service.Cancel(ctx, user, upload.ResourceID)
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 400, problem.Status)
}

func TestDeleteReferencedResource(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, store, user := newService(t)

	upload, err := service.InitiateUpload(ctx, user, resources.InitiateUploadParams{
		FileName: "wordlist.txt",
		Type:     resources.TypeWordList,
	})
	require.NoError(t, err)
	store.Put(upload.ResourceID.String(), []byte("word\n"))
	_, err = service.ConfirmUpload(ctx, user, upload.ResourceID)
	require.NoError(t, err)

	// reference the resource from an attack
	hashList, err := db.HashLists().Insert(ctx, &hashlists.HashList{Name: "leaked", HashTypeID: 0})
	require.NoError(t, err)
	campaign, err := db.Campaigns().Insert(ctx, &campaigns.Campaign{
		ProjectID:  1,
		HashListID: hashList.ID,
		Name:       "spring audit",
		State:      campaigns.StateDraft,
	})
	require.NoError(t, err)
	wordListID := upload.ResourceID
	_, err = db.Attacks().Insert(ctx, &attacks.Attack{
		CampaignID: campaign.ID,
		Name:       "dictionary pass",
		Mode:       attacks.ModeDictionary,
		State:      attacks.StatePending,
		WordListID: &wordListID,
	})
	require.NoError(t, err)

	err = service.Delete(ctx, user, upload.ResourceID)
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 400, problem.Status)

	// still there
	_, err = db.Resources().Get(ctx, upload.ResourceID)
	require.NoError(t, err)
}

func TestUsageCountPredicates(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db, store, user := newService(t)

	upload, err := service.InitiateUpload(ctx, user, resources.InitiateUploadParams{
		FileName: "best64.rule",
		Type:     resources.TypeRuleList,
	})
	require.NoError(t, err)
	store.Put(upload.ResourceID.String(), []byte("$1\n"))
	_, err = service.ConfirmUpload(ctx, user, upload.ResourceID)
	require.NoError(t, err)

	hashList, err := db.HashLists().Insert(ctx, &hashlists.HashList{Name: "leaked", HashTypeID: 0})
	require.NoError(t, err)
	campaign, err := db.Campaigns().Insert(ctx, &campaigns.Campaign{
		ProjectID:  1,
		HashListID: hashList.ID,
		Name:       "spring audit",
		State:      campaigns.StateDraft,
	})
	require.NoError(t, err)

	// rule and mask list references do not count as usage
	ruleListID := upload.ResourceID
	_, err = db.Attacks().Insert(ctx, &attacks.Attack{
		CampaignID: campaign.ID,
		Name:       "ruled pass",
		Mode:       attacks.ModeMask,
		Mask:       "?d?d?d?d",
		State:      attacks.StatePending,
		RuleListID: &ruleListID,
		MaskListID: &ruleListID,
	})
	require.NoError(t, err)

	detail, err := service.Get(ctx, user, upload.ResourceID)
	require.NoError(t, err)
	require.Zero(t, detail.UsageCount)
	require.Empty(t, detail.Attacks)

	// left_rule matching the GUID text does
	referencing, err := db.Attacks().Insert(ctx, &attacks.Attack{
		CampaignID: campaign.ID,
		Name:       "guid pass",
		Mode:       attacks.ModeMask,
		Mask:       "?d?d?d?d",
		State:      attacks.StatePending,
		LeftRule:   detail.GUID.String(),
	})
	require.NoError(t, err)

	detail, err = service.Get(ctx, user, upload.ResourceID)
	require.NoError(t, err)
	require.Equal(t, int64(1), detail.UsageCount)
	require.Equal(t, []resources.AttackRef{{ID: referencing.ID, Name: "guid pass"}}, detail.Attacks)

	err = service.Delete(ctx, user, upload.ResourceID)
	require.Error(t, err)
	problem, ok := problems.Is(err)
	require.True(t, ok)
	require.Equal(t, 400, problem.Status)

	// dropping the left_rule reference frees the resource for deletion
	require.NoError(t, db.Attacks().Delete(ctx, referencing.ID))
	require.NoError(t, service.Delete(ctx, user, upload.ResourceID))
}

func TestGetPreview(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, store, user := newService(t)

	upload, err := service.InitiateUpload(ctx, user, resources.InitiateUploadParams{
		FileName: "preview.txt",
		Type:     resources.TypeWordList,
	})
	require.NoError(t, err)

	// pending resource without inline content reports a preview error
	preview, err := service.GetPreview(ctx, user, upload.ResourceID, 10)
	require.NoError(t, err)
	require.NotNil(t, preview.PreviewError)
	require.Empty(t, preview.PreviewLines)

	store.Put(upload.ResourceID.String(), []byte("alpha\nbravo\ncharlie\ndelta\n"))
	_, err = service.ConfirmUpload(ctx, user, upload.ResourceID)
	require.NoError(t, err)

	preview, err = service.GetPreview(ctx, user, upload.ResourceID, 2)
	require.NoError(t, err)
	require.Nil(t, preview.PreviewError)
	require.Equal(t, []string{"alpha", "bravo"}, preview.PreviewLines)

	// storage failures surface inside the body, not as request errors
	store.GetError = errors.New("read failure")
	preview, err = service.GetPreview(ctx, user, upload.ResourceID, 2)
	require.NoError(t, err)
	require.NotNil(t, preview.PreviewError)
	store.GetError = nil
}
