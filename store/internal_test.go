package store

import (
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapTransactionError(t *testing.T) {
	canceled := func(codes ...string) error {
		reasons := make([]types.CancellationReason, len(codes))
		for i, c := range codes {
			reasons[i].Code = aws.String(c)
		}
		return &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"condition failed", canceled("None", "ConditionalCheckFailed"), true},
		{"transaction conflict", canceled("TransactionConflict", "None"), true},
		{"conflict exception", &types.TransactionConflictException{}, true},
		{"throttled", canceled("ThrottlingError"), false},
		{"plain", errors.New("network"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapTransactionError(tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.conflict, errors.Is(err, ErrConcurrentModification))
		})
	}

	assert.NoError(t, mapTransactionError(nil))
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name string
		in   types.AttributeValue
		want any
	}{
		{"string", &types.AttributeValueMemberS{Value: "x"}, "x"},
		{"integer", &types.AttributeValueMemberN{Value: "42"}, int64(42)},
		{"float", &types.AttributeValueMemberN{Value: "1.5"}, 1.5},
		{"bool", &types.AttributeValueMemberBOOL{Value: true}, true},
		{"null", &types.AttributeValueMemberNULL{Value: true}, nil},
		{
			"string list",
			&types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberS{Value: "a"},
				&types.AttributeValueMemberS{Value: "b"},
			}},
			[]string{"a", "b"},
		},
		{
			"mixed list",
			&types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberS{Value: "a"},
				&types.AttributeValueMemberN{Value: "1"},
			}},
			[]any{"a", int64(1)},
		},
		{"string set", &types.AttributeValueMemberSS{Value: []string{"a"}}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeValue(tt.in))
		})
	}
}

func TestMarshalDocument_RoundTrip(t *testing.T) {
	doc := NewDocument(NewKey("ConfSession", "s1", NewKey("Conference", "c1", NewKey("Profile", "u1", nil))))
	doc.Set("name", "Intro")
	doc.Set("duration", "01:30")
	doc.Set("speakers", []string{"Ada"})
	doc.Set("seats", 3)

	item, err := marshalDocument(doc, 4, 1)
	require.NoError(t, err)

	got, err := unmarshalDocument(item)
	require.NoError(t, err)
	assert.True(t, got.Key.Equal(doc.Key))
	assert.Equal(t, int64(4), got.Version)
	assert.Equal(t, doc.Properties, got.Properties)
}

func TestExpectVersion(t *testing.T) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	assert.Equal(t, "attribute_not_exists(pk)", expectVersion(0, names, values))
	assert.Empty(t, names)

	assert.Equal(t, "#version = :expected", expectVersion(7, names, values))
	assert.Equal(t, "version", names["#version"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "7"}, values[":expected"])
}

func TestBackoff(t *testing.T) {
	assert.Zero(t, backoff(0, 3))

	for retry := 1; retry <= 4; retry++ {
		full := 10 * time.Millisecond << (retry - 1)
		d := backoff(10*time.Millisecond, retry)
		assert.GreaterOrEqual(t, d, full/2)
		assert.LessOrEqual(t, d, full)
	}

	assert.LessOrEqual(t, backoff(10*time.Millisecond, 40), time.Second)
}

func TestDocument_CloneIsDeep(t *testing.T) {
	doc := NewDocument(NewKey("Profile", "u1", nil))
	doc.Set("wishlist", []string{"a"})

	clone := doc.Clone()
	clone.Properties["wishlist"].([]string)[0] = "b"
	assert.Equal(t, []string{"a"}, doc.Strings("wishlist"))
	assert.Nil(t, (*Document)(nil).Clone())
}
