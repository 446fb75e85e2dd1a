package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/uniserve-app/uniserve-go-api/internal/dto"
	"github.com/uniserve-app/uniserve-go-api/internal/handler"
	"github.com/uniserve-app/uniserve-go-api/internal/models"
	"github.com/uniserve-app/uniserve-go-api/internal/service"
)

type stubCreditService struct {
	service.CreditService
	summaries []dto.HoursSummaryResponse
}

func (s stubCreditService) ListSummariesForDoctor(context.Context, uint) ([]dto.HoursSummaryResponse, error) {
	return s.summaries, nil
}

func TestHoursSummaryContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "hours_summary.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	now := time.Now().UTC()
	sent := now.Add(-time.Minute)
	stub := stubCreditService{
		summaries: []dto.HoursSummaryResponse{
			{
				StudentUserID: 4,
				DoctorUserID:  9,
				TotalHours:    50,
				Result:        models.HoursResultPass,
				ResultSentAt:  &sent,
				CalculatedAt:  now,
			},
			{
				StudentUserID: 5,
				DoctorUserID:  9,
				TotalHours:    12.5,
				Result:        models.HoursResultFail,
				CalculatedAt:  now,
			},
		},
	}

	hoursHandler := handler.NewHoursHandler(stub, zerolog.Nop())

	app := fiber.New()
	group := app.Group("/api/v1/hours", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(9))
		c.Locals("user_role", models.RoleDoctor)
		return c.Next()
	})
	hoursHandler.Register(group)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hours/summary", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
