package handler

import (
	"net/http"
	"testing"

	"github.com/Lazarus-Duchy/kodaro-cmr/internal/model"
	"github.com/Lazarus-Duchy/kodaro-cmr/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateClient(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)

	c, rec := newRequest(t, e, http.MethodPost, "/api/clients", map[string]interface{}{
		"name":     "Acme Sp. z o.o.",
		"industry": "technology",
		"email":    "office@acme.example.com",
		"city":     "Warszawa",
		"country":  "Poland",
	})
	authenticate(c, user)
	require.NoError(t, CreateClient(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeMap(t, rec)
	assert.Equal(t, "Acme Sp. z o.o.", body["name"])
	// Status defaults to lead, creator is recorded
	assert.Equal(t, "lead", body["status"])
	assert.Equal(t, user.ID, body["created_by"])
	assert.Equal(t, user.Email, body["created_by_email"])
}

func TestCreateClientValidation(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)

	c, rec := newRequest(t, e, http.MethodPost, "/api/clients", map[string]interface{}{
		"email": "not-an-email",
	})
	authenticate(c, user)
	require.NoError(t, CreateClient(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	errs := decodeMap(t, rec)["errors"].(map[string]interface{})
	assert.Contains(t, errs, "name")
	assert.Contains(t, errs, "email")
}

func TestListClientsFilters(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)

	active := createTestClient(t, "Active Client")
	require.NoError(t, database.GetDB().Model(active).Updates(map[string]interface{}{
		"status":         "active",
		"assigned_to_id": user.ID,
	}).Error)
	lead := createTestClient(t, "Lead Client")
	require.NoError(t, database.GetDB().Model(lead).Update("status", "lead").Error)

	// Filter by status
	c, rec := newRequest(t, e, http.MethodGet, "/api/clients?status=active", nil)
	authenticate(c, user)
	require.NoError(t, ListClients(c))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Active Client", list[0]["name"])

	// mine narrows to clients assigned to the caller
	c, rec = newRequest(t, e, http.MethodGet, "/api/clients?mine=true", nil)
	authenticate(c, user)
	require.NoError(t, ListClients(c))
	list = decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0]["id"])
	assert.Equal(t, user.Email, list[0]["assigned_to_email"])
}

func TestListClientsSearch(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)

	warsaw := createTestClient(t, "Warsaw Office")
	require.NoError(t, database.GetDB().Model(warsaw).Update("city", "Warszawa").Error)
	createTestClient(t, "Berlin Office")

	// Case-insensitive, matches across name and city
	c, rec := newRequest(t, e, http.MethodGet, "/api/clients?search=wArSz", nil)
	authenticate(c, user)
	require.NoError(t, ListClients(c))
	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, warsaw.ID, list[0]["id"])
}

func TestListClientsOrdering(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)
	createTestClient(t, "Bravo")
	createTestClient(t, "Alpha")

	c, rec := newRequest(t, e, http.MethodGet, "/api/clients?ordering=name", nil)
	authenticate(c, user)
	require.NoError(t, ListClients(c))
	list := decodeList(t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0]["name"])

	c, rec = newRequest(t, e, http.MethodGet, "/api/clients?ordering=-name", nil)
	authenticate(c, user)
	require.NoError(t, ListClients(c))
	list = decodeList(t, rec)
	assert.Equal(t, "Bravo", list[0]["name"])
}

func TestGetClientDetailIncludesContacts(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)
	client := createTestClient(t, "Detail Client")

	secondary := model.Contact{ClientID: client.ID, FirstName: "Zofia", LastName: "Zielinska"}
	require.NoError(t, database.GetDB().Create(&secondary).Error)
	primary := model.Contact{ClientID: client.ID, FirstName: "Adam", LastName: "Adamski", IsPrimary: true}
	require.NoError(t, database.GetDB().Create(&primary).Error)

	c, rec := newRequest(t, e, http.MethodGet, "/api/clients/"+client.ID, nil)
	c.SetParamNames("id")
	c.SetParamValues(client.ID)
	authenticate(c, user)
	require.NoError(t, GetClient(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeMap(t, rec)
	contacts := body["contacts"].([]interface{})
	require.Len(t, contacts, 2)
	// Primary contact is listed first
	assert.Equal(t, primary.ID, contacts[0].(map[string]interface{})["id"])
}

func TestUpdateClientPartial(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)
	client := createTestClient(t, "Before")

	c, rec := newRequest(t, e, http.MethodPatch, "/api/clients/"+client.ID, map[string]interface{}{
		"status": "churned",
	})
	c.SetParamNames("id")
	c.SetParamValues(client.ID)
	authenticate(c, user)
	require.NoError(t, UpdateClient(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeMap(t, rec)
	assert.Equal(t, "churned", body["status"])
	// Untouched fields keep their values
	assert.Equal(t, "Before", body["name"])
}

func TestUpdateClientClearAssignee(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)
	client := createTestClient(t, "Acme")
	require.NoError(t, database.GetDB().Model(client).Update("assigned_to_id", user.ID).Error)

	patch := func(body map[string]interface{}) map[string]interface{} {
		c, rec := newRequest(t, e, http.MethodPatch, "/api/clients/"+client.ID, body)
		c.SetParamNames("id")
		c.SetParamValues(client.ID)
		authenticate(c, user)
		require.NoError(t, UpdateClient(c))
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeMap(t, rec)
	}

	// An absent field leaves the assignment alone
	body := patch(map[string]interface{}{"city": "Warsaw"})
	assert.Equal(t, user.ID, body["assigned_to"])

	// An explicit null clears it
	body = patch(map[string]interface{}{"assigned_to": nil})
	assert.Nil(t, body["assigned_to"])

	var stored model.Client
	require.NoError(t, database.GetDB().First(&stored, "id = ?", client.ID).Error)
	assert.Nil(t, stored.AssignedToID)
}

func TestDeleteClientBlockedByPurchases(t *testing.T) {
	e := setupTest(t)
	admin := createTestUser(t, "admin@example.com", true)
	client := createTestClient(t, "Buyer")
	product := createTestProduct(t, "Widget", "10.00")
	createTestPurchase(t, product, client, 1, "2026-05-01")

	c, rec := newRequest(t, e, http.MethodDelete, "/api/clients/"+client.ID, nil)
	c.SetParamNames("id")
	c.SetParamValues(client.ID)
	authenticate(c, admin)
	require.NoError(t, DeleteClient(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var count int64
	database.GetDB().Model(&model.Client{}).Where("id = ?", client.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestDeleteClientCascadesContacts(t *testing.T) {
	e := setupTest(t)
	admin := createTestUser(t, "admin@example.com", true)
	client := createTestClient(t, "Doomed")
	contact := model.Contact{ClientID: client.ID, FirstName: "Jan", LastName: "Nowak"}
	require.NoError(t, database.GetDB().Create(&contact).Error)

	c, rec := newRequest(t, e, http.MethodDelete, "/api/clients/"+client.ID, nil)
	c.SetParamNames("id")
	c.SetParamValues(client.ID)
	authenticate(c, admin)
	require.NoError(t, DeleteClient(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	database.GetDB().Model(&model.Contact{}).Where("client_id = ?", client.ID).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestClientStats(t *testing.T) {
	e := setupTest(t)
	user := createTestUser(t, "sales@example.com", false)

	for _, status := range []string{"active", "active", "lead"} {
		cl := createTestClient(t, "Client "+status)
		require.NoError(t, database.GetDB().Model(cl).Update("status", status).Error)
	}

	c, rec := newRequest(t, e, http.MethodGet, "/api/clients/stats", nil)
	authenticate(c, user)
	require.NoError(t, ClientStats(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeMap(t, rec)
	assert.EqualValues(t, 2, body["active"])
	assert.EqualValues(t, 1, body["lead"])
}
