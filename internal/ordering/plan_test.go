package ordering

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{ID: uint(i + 1), Position: i + 1}
	}
	return items
}

func positions(items []Item) map[uint]int {
	out := make(map[uint]int, len(items))
	for _, it := range items {
		out[it.ID] = it.Position
	}
	return out
}

func TestPlanMoveUp(t *testing.T) {
	// A B C D E, move C to 1 -> C A B D E
	items := seq(5)
	from, to, steps, err := PlanMove(items, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, from)
	assert.Equal(t, 1, to)

	out, err := Apply(items, steps)
	require.NoError(t, err)
	assert.Equal(t, map[uint]int{3: 1, 1: 2, 2: 3, 4: 4, 5: 5}, positions(out))
	assert.True(t, Dense(out))
}

func TestPlanMoveDown(t *testing.T) {
	items := seq(5)
	_, to, steps, err := PlanMove(items, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, to)

	out, err := Apply(items, steps)
	require.NoError(t, err)
	assert.Equal(t, map[uint]int{1: 1, 3: 2, 4: 3, 2: 4, 5: 5}, positions(out))
}

func TestPlanMoveClampsAndNoop(t *testing.T) {
	items := seq(3)

	_, to, steps, err := PlanMove(items, 1, 99)
	require.NoError(t, err)
	assert.Equal(t, 3, to)
	out, err := Apply(items, steps)
	require.NoError(t, err)
	assert.Equal(t, 3, positions(out)[1])

	_, to, steps, err = PlanMove(items, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, to)
	assert.Empty(t, steps)

	_, _, _, err = PlanMove(items, 42, 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestPlanInsert(t *testing.T) {
	items := seq(3)
	pos, steps := PlanInsert(items, 2)
	assert.Equal(t, 2, pos)

	out, err := Apply(items, steps)
	require.NoError(t, err)
	out = append(out, Item{ID: 99, Position: pos})
	assert.True(t, Dense(out))
	assert.Equal(t, map[uint]int{1: 1, 99: 2, 2: 3, 3: 4}, positions(out))

	pos, steps = PlanInsert(items, 0)
	assert.Equal(t, 1, pos)
	assert.Len(t, steps, 3)

	pos, steps = PlanInsert(items, 50)
	assert.Equal(t, 4, pos)
	assert.Empty(t, steps)

	assert.Equal(t, 1, PlanAppend(nil))
}

func TestPlanRemove(t *testing.T) {
	items := seq(4)
	steps, err := PlanRemove(items, 2)
	require.NoError(t, err)

	remaining := []Item{items[0], items[2], items[3]}
	out, err := Apply(remaining, steps)
	require.NoError(t, err)
	assert.True(t, Dense(out))
	assert.Equal(t, map[uint]int{1: 1, 3: 2, 4: 3}, positions(out))

	_, err = PlanRemove(items, 9)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestPlanCompact(t *testing.T) {
	items := []Item{{ID: 7, Position: 10}, {ID: 3, Position: 2}, {ID: 5, Position: 2}, {ID: 9, Position: 40}}
	assert.False(t, Dense(items))

	out, err := Apply(items, PlanCompact(items))
	require.NoError(t, err)
	assert.True(t, Dense(out))
	// ties on position break by id
	assert.Equal(t, map[uint]int{3: 1, 5: 2, 7: 3, 9: 4}, positions(out))
}

func TestPlanCompactNonPositivePositions(t *testing.T) {
	cases := [][]Item{
		{{ID: 1, Position: -1}, {ID: 2, Position: 1}},
		{{ID: 1, Position: 0}, {ID: 2, Position: 1}, {ID: 3, Position: 2}},
		{{ID: 4, Position: -3}, {ID: 2, Position: -1}, {ID: 3, Position: 2}, {ID: 1, Position: 9}},
	}
	for _, items := range cases {
		out, err := Apply(items, PlanCompact(items))
		require.NoError(t, err)
		assert.True(t, Dense(out))
		// relative order survives
		for i, it := range Sorted(items) {
			assert.Equal(t, i+1, positions(out)[it.ID])
		}
	}
}

// Any set of distinct positions, legacy zero and negative ones included,
// compacts without a step landing on an occupied slot.
func TestPlanCompactNeverCollides(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 300; round++ {
		used := map[int]bool{}
		var items []Item
		n := uint(rng.Intn(8) + 1)
		for id := uint(1); id <= n; id++ {
			p := rng.Intn(30) - 10
			if used[p] {
				continue
			}
			used[p] = true
			items = append(items, Item{ID: id, Position: p})
		}
		out, err := Apply(items, PlanCompact(items))
		require.NoError(t, err, "items %v", items)
		assert.True(t, Dense(out))
	}
}

func TestApplyDetectsCollision(t *testing.T) {
	items := seq(2)
	_, err := Apply(items, []Step{{ID: 1, From: 1, To: 2}})
	var collision *CollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, uint(2), collision.Holder)
}

// Random sequences of operations keep the set dense and never collide.
func TestPlansStayDense(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var items []Item
	nextID := uint(1)

	for i := 0; i < 500; i++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(items) == 0:
			pos, steps := PlanInsert(items, rng.Intn(len(items)+3)-1)
			out, err := Apply(items, steps)
			require.NoError(t, err)
			items = append(out, Item{ID: nextID, Position: pos})
			nextID++
		case op == 1:
			victim := items[rng.Intn(len(items))]
			_, _, steps, err := PlanMove(items, victim.ID, rng.Intn(len(items)+2))
			require.NoError(t, err)
			items, err = Apply(items, steps)
			require.NoError(t, err)
		default:
			victim := items[rng.Intn(len(items))]
			steps, err := PlanRemove(items, victim.ID)
			require.NoError(t, err)
			var rest []Item
			for _, it := range items {
				if it.ID != victim.ID {
					rest = append(rest, it)
				}
			}
			items, err = Apply(rest, steps)
			require.NoError(t, err)
		}
		require.True(t, Dense(items), "iteration %d: %v", i, items)
	}
}
