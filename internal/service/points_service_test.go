package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorechart/internal/models"
	"chorechart/internal/validation"
)

func TestLedgerSumMatchesBalance(t *testing.T) {
	env := newTestEnv(t)
	fam := newFamily(t, env)
	ctx := context.Background()

	ops := []struct {
		add    bool
		points int
	}{
		{true, 10}, {false, 4}, {true, 3}, {false, 9}, {true, 25}, {false, 1},
	}
	want := 0
	for _, op := range ops {
		in := PointsInput{UserID: fam.child.UserID, Points: op.points}
		if op.add {
			_, balance, err := env.pointsSvc.AddBonus(ctx, fam.parent, in)
			require.NoError(t, err)
			want += op.points
			assert.Equal(t, want, balance)
		} else {
			_, balance, err := env.pointsSvc.Deduct(ctx, fam.other, in)
			require.NoError(t, err)
			want -= op.points
			assert.Equal(t, want, balance)
		}
	}

	assert.Equal(t, want, env.balance(t, fam.child))

	history, err := env.pointsSvc.History(fam.parent, fam.child.UserID)
	require.NoError(t, err)
	require.Len(t, history, len(ops))
	sum := 0
	for _, h := range history {
		sum += h.Points
		assert.Equal(t, sum, h.RunningBalance)
	}
	assert.Equal(t, want, history[len(history)-1].RunningBalance)
}

func TestDeductGuard(t *testing.T) {
	env := newTestEnv(t)
	fam := newFamily(t, env)
	ctx := context.Background()

	_, _, err := env.pointsSvc.AddBonus(ctx, fam.parent, PointsInput{UserID: fam.child.UserID, Points: 3, Reason: "Helping out"})
	require.NoError(t, err)

	_, _, err = env.pointsSvc.Deduct(ctx, fam.parent, PointsInput{UserID: fam.child.UserID, Points: 10})
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	assert.Equal(t, 3, env.balance(t, fam.child))

	entry, balance, err := env.pointsSvc.Deduct(ctx, fam.parent, PointsInput{UserID: fam.child.UserID, Points: 3, Reason: "Screen time"})
	require.NoError(t, err)
	assert.Equal(t, -3, entry.Points)
	assert.Equal(t, "Screen time", entry.Reason)
	assert.Zero(t, balance)

	deducted := env.notifier.ofType(models.NotifyPointsDeducted)
	require.Len(t, deducted, 1)
	assert.Equal(t, []int64{fam.child.UserID}, deducted[0].Recipients)
}

func TestPointsAuthorization(t *testing.T) {
	env := newTestEnv(t)
	fam := newFamily(t, env)
	ctx := context.Background()
	outsider, _ := env.registerParent(t, "zed@example.com", "Zed")

	_, _, err := env.pointsSvc.AddBonus(ctx, fam.child, PointsInput{UserID: fam.child.UserID, Points: 5})
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = env.pointsSvc.AddBonus(ctx, fam.parent, PointsInput{UserID: outsider.UserID, Points: 5})
	var ve validation.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "userId", ve.Field)

	_, _, err = env.pointsSvc.AddBonus(ctx, fam.parent, PointsInput{UserID: fam.child.UserID, Points: 0})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "points", ve.Field)

	_, err = env.pointsSvc.History(fam.child, fam.other.UserID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.pointsSvc.FamilyHistory(fam.child)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.pointsSvc.Balance(fam.parent, outsider.UserID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFamilyHistoryAndBalances(t *testing.T) {
	env := newTestEnv(t)
	fam := newFamily(t, env)
	ctx := context.Background()

	_, _, err := env.pointsSvc.AddBonus(ctx, fam.parent, PointsInput{UserID: fam.child.UserID, Points: 5})
	require.NoError(t, err)
	_, _, err = env.pointsSvc.AddBonus(ctx, fam.parent, PointsInput{UserID: fam.other.UserID, Points: 2})
	require.NoError(t, err)
	_, _, err = env.pointsSvc.AddBonus(ctx, fam.parent, PointsInput{UserID: fam.child.UserID, Points: 1})
	require.NoError(t, err)

	history, err := env.pointsSvc.FamilyHistory(fam.parent)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []int{5, 2, 6}, []int{history[0].RunningBalance, history[1].RunningBalance, history[2].RunningBalance})

	balances, err := env.pointsSvc.FamilyBalances(fam.child)
	require.NoError(t, err)
	require.Len(t, balances, 3)
	assert.Equal(t, fam.child.UserID, balances[0].UserID)
	assert.Equal(t, 6, balances[0].Balance)
	assert.Equal(t, models.RoleChild, balances[0].Role)
	assert.Equal(t, 0, balances[2].Balance)
}
