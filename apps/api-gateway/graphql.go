package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	graphqllib "github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/authn"
	"github.com/brivas/smsgateway/internal/quota"
	"github.com/brivas/smsgateway/internal/store"
)

type gqlContextKey string

const gqlUserContextKey gqlContextKey = "gql_user_id"

func contextWithGQLUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, gqlUserContextKey, userID)
}

func gqlUserFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(gqlUserContextKey).(uuid.UUID)
	return id, ok
}

// buildGraphQLSchema defines a deliberately read-only schema over the
// three entities worth introspecting without leaving the REST surface:
// messages, devices, and the caller's quota. Mirrors the teacher's
// auto-generated GraphQLHandler's type-building shape, but fixed rather
// than generated from a live table list — there is no generic Hasura-style
// CRUD surface in this domain, only the concrete entities spec'd.
func buildGraphQLSchema(db *store.Client, quotaSvc *quota.Service) (*graphqllib.Schema, error) {
	messageType := graphqllib.NewObject(graphqllib.ObjectConfig{
		Name: "Message",
		Fields: graphqllib.Fields{
			"id":        &graphqllib.Field{Type: graphqllib.String},
			"to":        &graphqllib.Field{Type: graphqllib.String},
			"body":      &graphqllib.Field{Type: graphqllib.String},
			"status":    &graphqllib.Field{Type: graphqllib.String},
			"type":      &graphqllib.Field{Type: graphqllib.String},
			"createdAt": &graphqllib.Field{Type: graphqllib.String},
		},
	})

	deviceType := graphqllib.NewObject(graphqllib.ObjectConfig{
		Name: "Device",
		Fields: graphqllib.Fields{
			"id":          &graphqllib.Field{Type: graphqllib.String},
			"name":        &graphqllib.Field{Type: graphqllib.String},
			"phoneNumber": &graphqllib.Field{Type: graphqllib.String},
		},
	})

	quotaType := graphqllib.NewObject(graphqllib.ObjectConfig{
		Name: "Quota",
		Fields: graphqllib.Fields{
			"planName":      &graphqllib.Field{Type: graphqllib.String},
			"usedSms":       &graphqllib.Field{Type: graphqllib.Int},
			"limitSms":      &graphqllib.Field{Type: graphqllib.Int},
			"usedDevices":   &graphqllib.Field{Type: graphqllib.Int},
			"limitDevices":  &graphqllib.Field{Type: graphqllib.Int},
			"nextResetDate": &graphqllib.Field{Type: graphqllib.String},
		},
	})

	queryType := graphqllib.NewObject(graphqllib.ObjectConfig{
		Name: "Query",
		Fields: graphqllib.Fields{
			"messages": &graphqllib.Field{
				Type: graphqllib.NewList(messageType),
				Args: graphqllib.FieldConfigArgument{
					"limit": &graphqllib.ArgumentConfig{Type: graphqllib.Int},
				},
				Resolve: func(p graphqllib.ResolveParams) (interface{}, error) {
					userID, ok := gqlUserFromContext(p.Context)
					if !ok {
						return nil, nil
					}
					limit, _ := p.Args["limit"].(int)
					if limit <= 0 {
						limit = 50
					}
					messages, err := db.ListMessages(p.Context, store.MessageFilter{UserID: userID, Limit: limit})
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(messages))
					for _, m := range messages {
						out = append(out, map[string]interface{}{
							"id": m.ID.String(), "to": m.To, "body": m.Body,
							"status": m.Status, "type": m.MessageType,
							"createdAt": m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
						})
					}
					return out, nil
				},
			},
			"devices": &graphqllib.Field{
				Type: graphqllib.NewList(deviceType),
				Resolve: func(p graphqllib.ResolveParams) (interface{}, error) {
					userID, ok := gqlUserFromContext(p.Context)
					if !ok {
						return nil, nil
					}
					list, err := db.ListDevicesByUser(p.Context, userID)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(list))
					for _, d := range list {
						out = append(out, map[string]interface{}{
							"id": d.ID.String(), "name": d.Name, "phoneNumber": d.PhoneNumber,
						})
					}
					return out, nil
				},
			},
			"quota": &graphqllib.Field{
				Type: quotaType,
				Resolve: func(p graphqllib.ResolveParams) (interface{}, error) {
					userID, ok := gqlUserFromContext(p.Context)
					if !ok {
						return nil, nil
					}
					status, err := quotaSvc.GetQuota(p.Context, userID)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"planName":      status.PlanName,
						"usedSms":       status.UsedSMS,
						"limitSms":      status.LimitSMS,
						"usedDevices":   status.UsedDevices,
						"limitDevices":  status.LimitDevices,
						"nextResetDate": status.NextResetDate.Format("2006-01-02"),
					}, nil
				},
			},
		},
	})

	schema, err := graphqllib.NewSchema(graphqllib.SchemaConfig{Query: queryType})
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed graphql request"})
		return
	}

	user, _ := authn.UserFromContext(r.Context())
	ctx := contextWithGQLUser(r.Context(), user.ID)

	result := graphqllib.Do(graphqllib.Params{
		Schema:         *s.gqlSchema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		Context:        ctx,
	})
	if len(result.Errors) > 0 {
		s.logger.Warn("graphql query errors", zap.Any("errors", result.Errors))
	}
	writeJSON(w, http.StatusOK, result)
}
