package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBasePaths(t *testing.T) {
	api := newFakeAPI()
	res := newResolver(api, "base", testLogger())

	for _, rel := range []string{"", ".", "./"} {
		id, err := res.resolve(context.Background(), rel)
		require.NoError(t, err)
		assert.Equal(t, "base", id)
	}

	assert.Zero(t, api.findCalls)
}

func TestResolveCreatesMissingChain(t *testing.T) {
	api := newFakeAPI()
	res := newResolver(api, "base", testLogger())

	id, err := res.resolve(context.Background(), "a/b/c")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 3, api.createCalls)

	// Each level is a child of the previous one.
	require.Len(t, api.folders["base"], 1)
	a := api.folders["base"][0]
	require.Len(t, api.folders[a.ID], 1)
	b := api.folders[a.ID][0]
	require.Len(t, api.folders[b.ID], 1)
	assert.Equal(t, id, api.folders[b.ID][0].ID)
}

func TestResolveMemoizesAcrossCalls(t *testing.T) {
	api := newFakeAPI()
	res := newResolver(api, "base", testLogger())

	first, err := res.resolve(context.Background(), "a/b")
	require.NoError(t, err)

	findsAfterFirst := api.findCalls

	again, err := res.resolve(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, findsAfterFirst, api.findCalls, "cached path must not hit the API")

	// A sibling under a cached prefix only resolves the new leaf.
	_, err = res.resolve(context.Background(), "a/other")
	require.NoError(t, err)
	assert.Equal(t, findsAfterFirst+1, api.findCalls)
}

func TestResolveReusesExistingFolder(t *testing.T) {
	api := newFakeAPI()
	existing, err := api.CreateFolder(context.Background(), "base", "docs")
	require.NoError(t, err)

	createsBefore := api.createCalls

	res := newResolver(api, "base", testLogger())
	id, err := res.resolve(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, id)
	assert.Equal(t, createsBefore, api.createCalls)
}

func TestResolveDuplicateFoldersPicksFirst(t *testing.T) {
	api := newFakeAPI()
	first, err := api.CreateFolder(context.Background(), "base", "dup")
	require.NoError(t, err)
	_, err = api.CreateFolder(context.Background(), "base", "dup")
	require.NoError(t, err)

	res := newResolver(api, "base", testLogger())
	id, err := res.resolve(context.Background(), "dup")
	require.NoError(t, err)
	assert.Equal(t, first.ID, id)
}

func TestFindOrCreateNormalizesName(t *testing.T) {
	api := newFakeAPI()
	// "é" precomposed (NFC).
	existing, err := api.CreateFolder(context.Background(), "base", "café")
	require.NoError(t, err)

	createsBefore := api.createCalls

	res := newResolver(api, "base", testLogger())
	// "e" + combining acute (NFD) must match the precomposed folder.
	id, err := res.findOrCreate(context.Background(), "base", "café")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, id)
	assert.Equal(t, createsBefore, api.createCalls)
}
