package ragerr_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/ragerr"
)

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := ragerr.New(
		ragerr.CodeExtractionReadFailure,
		"cannot read document",
		ragerr.FieldSource("report.pdf"),
		ragerr.FieldChunk(3),
	)

	require.Error(t, err)
	assert.Equal(t, ragerr.CodeExtractionReadFailure, ragerr.CodeOf(err))
	assert.True(t, ragerr.IsExtraction(err))

	fields := ragerr.FieldsOf(err)
	assert.Equal(t, "report.pdf", fields["source"])
	assert.Equal(t, 3, fields["chunk"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := ragerr.Errorf(ragerr.CodeStoreDatabaseFailure, "append failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.True(t, ragerr.IsStore(err))
}

func TestWrapKeepsOriginatingCode(t *testing.T) {
	root := ragerr.New(ragerr.CodeProviderTimeout, "embedding timed out")
	err := ragerr.Wrap(root, ragerr.CodePipelineFailure, "answering question")

	assert.ErrorIs(t, err, root)
	assert.True(t, ragerr.IsProvider(err))
	assert.True(t, ragerr.IsTimeout(err))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, ragerr.Wrap(nil, ragerr.CodeStoreDatabaseFailure, "noop"))
	assert.NoError(t, ragerr.Wrapf(nil, ragerr.CodeStoreDatabaseFailure, "noop %d", 1))
	assert.NoError(t, ragerr.With(nil, ragerr.FieldSource("x")))
}

func TestWithAddsFieldsToPlainError(t *testing.T) {
	err := ragerr.With(stderrors.New("boom"), ragerr.FieldQuestionID(7))
	assert.Equal(t, ragerr.CodePipelineFailure, ragerr.CodeOf(err))
	assert.Equal(t, int64(7), ragerr.FieldsOf(err)["question_id"])
}

func TestPredicates(t *testing.T) {
	assert.True(t, ragerr.IsNotFound(ragerr.New(ragerr.CodeStoreNotFound, "missing")))
	assert.True(t, ragerr.IsInvalidInput(ragerr.New(ragerr.CodePipelineInvalidInput, "empty")))
	assert.True(t, ragerr.IsDimensionMismatch(ragerr.New(ragerr.CodeRetrievalDimensionMismatch, "3 != 4")))
	assert.False(t, ragerr.IsNotFound(stderrors.New("plain")))
	assert.Equal(t, ragerr.Code(""), ragerr.CodeOf(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", ragerr.New(ragerr.CodeStoreNotFound, "x"), http.StatusNotFound},
		{"invalid", ragerr.New(ragerr.CodePipelineInvalidInput, "x"), http.StatusBadRequest},
		{"timeout", ragerr.New(ragerr.CodeProviderTimeout, "x"), http.StatusGatewayTimeout},
		{"provider", ragerr.New(ragerr.CodeProviderUpstreamFailure, "x"), http.StatusBadGateway},
		{"store", ragerr.New(ragerr.CodeStoreDatabaseFailure, "x"), http.StatusInternalServerError},
		{"plain", stderrors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ragerr.HTTPStatus(tt.err))
		})
	}
}

func TestJoin(t *testing.T) {
	assert.NoError(t, ragerr.Join(nil, nil))

	a := stderrors.New("a")
	b := stderrors.New("b")
	err := ragerr.Join(a, b)
	assert.ErrorIs(t, err, a)
	assert.ErrorIs(t, err, b)
}
