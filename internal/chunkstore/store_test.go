// Copyright 2025 TSBot authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chunkstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhdandz/tsbot/internal/model"
)

func chunk(id, parentID string) *model.Chunk {
	return &model.Chunk{ID: id, Content: "content of " + id, Metadata: model.ChunkMetadata{ParentID: parentID, Article: id}}
}

func TestBuild_LinksChildren(t *testing.T) {
	chunks := []*model.Chunk{
		chunk("root", ""),
		chunk("child-a", "root"),
		chunk("child-b", "root"),
	}
	store, err := Build(chunks)
	require.NoError(t, err)

	root := store.Get("root")
	require.NotNil(t, root)
	assert.ElementsMatch(t, []string{"child-a", "child-b"}, root.ChildrenIDs)
}

func TestBuild_DanglingParentIsStructuralError(t *testing.T) {
	chunks := []*model.Chunk{
		chunk("orphan", "does-not-exist"),
	}
	_, err := Build(chunks)
	require.Error(t, err)
	var structErr *StructuralError
	require.ErrorAs(t, err, &structErr)
	assert.Equal(t, "orphan", structErr.ChunkID)
}

func TestBuild_CycleIsStructuralError(t *testing.T) {
	chunks := []*model.Chunk{
		chunk("a", "b"),
		chunk("b", "a"),
	}
	_, err := Build(chunks)
	require.Error(t, err)
	var structErr *StructuralError
	require.ErrorAs(t, err, &structErr)
}

func TestBuild_DuplicateIDIsStructuralError(t *testing.T) {
	chunks := []*model.Chunk{
		chunk("dup", ""),
		chunk("dup", ""),
	}
	_, err := Build(chunks)
	require.Error(t, err)
}

func TestBuild_DepthExceedsMaxIsStructuralError(t *testing.T) {
	// maxDepth is 5; a chain of 7 nodes exceeds it.
	chunks := []*model.Chunk{
		chunk("c0", ""),
		chunk("c1", "c0"),
		chunk("c2", "c1"),
		chunk("c3", "c2"),
		chunk("c4", "c3"),
		chunk("c5", "c4"),
		chunk("c6", "c5"),
	}
	_, err := Build(chunks)
	require.Error(t, err)
}

func TestStore_SiblingsExcludesSelf(t *testing.T) {
	chunks := []*model.Chunk{
		chunk("root", ""),
		chunk("a", "root"),
		chunk("b", "root"),
		chunk("c", "root"),
	}
	store, err := Build(chunks)
	require.NoError(t, err)

	siblings := store.Siblings(store.Get("a"), 5)
	ids := make([]string, len(siblings))
	for i, s := range siblings {
		ids[i] = s.ID
	}
	assert.ElementsMatch(t, []string{"b", "c"}, ids)
}

func TestStore_SiblingsBoundedByK(t *testing.T) {
	chunks := []*model.Chunk{
		chunk("root", ""),
		chunk("a", "root"),
		chunk("b", "root"),
		chunk("c", "root"),
		chunk("d", "root"),
	}
	store, err := Build(chunks)
	require.NoError(t, err)

	siblings := store.Siblings(store.Get("a"), 2)
	assert.Len(t, siblings, 2)
}

func TestStore_DescendantsBFS(t *testing.T) {
	chunks := []*model.Chunk{
		chunk("root", ""),
		chunk("child", "root"),
		chunk("grandchild", "child"),
	}
	store, err := Build(chunks)
	require.NoError(t, err)

	descendants := store.Descendants(store.Get("root"))
	require.Len(t, descendants, 2)
	assert.Equal(t, "child", descendants[0].ID)
	assert.Equal(t, "grandchild", descendants[1].ID)
}

func TestStore_IsAncestor(t *testing.T) {
	chunks := []*model.Chunk{
		chunk("root", ""),
		chunk("child", "root"),
		chunk("grandchild", "child"),
	}
	store, err := Build(chunks)
	require.NoError(t, err)

	assert.True(t, store.IsAncestor(store.Get("root"), store.Get("grandchild")))
	assert.False(t, store.IsAncestor(store.Get("grandchild"), store.Get("root")))
}

func TestValidate_MirrorsBuild(t *testing.T) {
	good := []*model.Chunk{chunk("root", "")}
	assert.NoError(t, Validate(good))

	bad := []*model.Chunk{chunk("orphan", "missing")}
	assert.Error(t, Validate(bad))
}

func TestStore_AllPreservesDocumentOrder(t *testing.T) {
	chunks := []*model.Chunk{
		chunk("z", ""),
		chunk("a", ""),
		chunk("m", ""),
	}
	store, err := Build(chunks)
	require.NoError(t, err)

	all := store.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"z", "a", "m"}, []string{all[0].ID, all[1].ID, all[2].ID})
}
