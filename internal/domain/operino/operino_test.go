package operino

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOwner = Owner{Login: "jdoe", Email: "jdoe@example.com", FirstName: "Jane", LastName: "Doe"}

func TestNewOperino(t *testing.T) {
	tests := []struct {
		name       string
		opName     string
		domain     string
		owner      Owner
		components []Component
		wantErr    error
	}{
		{name: "valid", opName: "Acme", domain: "acme", owner: testOwner},
		{name: "blank name", opName: "  ", domain: "acme", owner: testOwner, wantErr: ErrInvalidName},
		{name: "uppercase domain", opName: "Acme", domain: "Acme", owner: testOwner, wantErr: ErrInvalidDomain},
		{name: "empty domain", opName: "Acme", domain: "", owner: testOwner, wantErr: ErrInvalidDomain},
		{name: "missing login", opName: "Acme", domain: "acme", owner: Owner{Email: "x@y.z"}, wantErr: ErrInvalidOwner},
		{
			name:       "bad component",
			opName:     "Acme",
			domain:     "acme",
			owner:      testOwner,
			components: []Component{{Type: "ftp", Hosting: HostingN3}},
			wantErr:    ErrInvalidComponent,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o, err := NewOperino(tc.opName, tc.domain, tc.owner, true, tc.components)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, o)
				return
			}
			require.NoError(t, err)
			assert.True(t, o.Active)
			assert.True(t, o.Provision)
			assert.Equal(t, tc.domain, o.Domain)
		})
	}
}

func TestIsValidDomain(t *testing.T) {
	assert.True(t, IsValidDomain("acme-health_01"))
	assert.False(t, IsValidDomain("-acme"))
	assert.False(t, IsValidDomain("acme.health"))
	assert.False(t, IsValidDomain(string(make([]byte, 64))))

	long := "a"
	for len(long) < 63 {
		long += "b"
	}
	assert.True(t, IsValidDomain(long))
}

func TestAddDefaultComponents(t *testing.T) {
	o, err := NewOperino("Acme", "acme", testOwner, false, nil)
	require.NoError(t, err)

	assert.True(t, o.AddDefaultComponents())
	require.Len(t, o.Components, 2)
	assert.Equal(t, ComponentCDR, o.Components[0].Type)
	assert.Equal(t, ComponentDemographics, o.Components[1].Type)
	for _, c := range o.Components {
		assert.True(t, c.Availability)
		assert.Equal(t, HostingNonN3, c.Hosting)
		assert.Equal(t, int64(1000), c.DiskSpace)
		assert.Equal(t, int64(1000), c.RecordsNumber)
		assert.Equal(t, int64(1000), c.TransactionsLimit)
	}

	assert.False(t, o.AddDefaultComponents(), "existing components are kept")
	assert.Len(t, o.Components, 2)
}

func TestOwnerDisplayName(t *testing.T) {
	assert.Equal(t, "Jane Doe", testOwner.DisplayName())
	assert.Equal(t, "jdoe", Owner{Login: "jdoe"}.DisplayName())
}

func TestDomainUsername(t *testing.T) {
	o := &Operino{Owner: testOwner, Domain: "acme"}
	assert.Equal(t, "jdoe_acme", o.DomainUsername())
}

func TestProvisioningTaskRoundTrip(t *testing.T) {
	o, err := NewOperino("Acme", "acme", testOwner, true, nil)
	require.NoError(t, err)
	o.ID = 42
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	task, err := NewProvisioningTask(o, "s3cret-Pass1", now)
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "jdoe_acme", task.User.Username)

	body, err := task.Encode()
	require.NoError(t, err)

	decoded, err := DecodeTask(body)
	require.NoError(t, err)
	assert.Equal(t, task, decoded)
}

func TestNewProvisioningTask_Unpersisted(t *testing.T) {
	o, err := NewOperino("Acme", "acme", testOwner, true, nil)
	require.NoError(t, err)

	_, err = NewProvisioningTask(o, "pw", time.Now())
	assert.Error(t, err, "operino without an ID cannot be queued")
}

func TestDecodeTask_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing fields", `{"id":"x"}`},
		{"bad email", `{"id":"6f1c2f0e-5d0a-4c36-9f0e-8f3b9f1f6a11","operino_id":1,"name":"a","domain":"acme",` +
			`"owner":{"login":"j","email":"nope"},"user":{"username":"j_acme","password":"p"}}`},
		{"bad domain", `{"id":"6f1c2f0e-5d0a-4c36-9f0e-8f3b9f1f6a11","operino_id":1,"name":"a","domain":"Acme!",` +
			`"owner":{"login":"j","email":"j@x.io"},"user":{"username":"j_acme","password":"p"}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeTask([]byte(tc.body))
			assert.Error(t, err)
		})
	}
}

func TestTaskConfig(t *testing.T) {
	task := ProvisioningTask{
		Name:   "Acme",
		Domain: "acme",
		Owner:  testOwner,
		User:   DomainUser{Username: "jdoe_acme", Password: "pw"},
	}

	cfg := task.Config("https://cdr.example.com")
	assert.Equal(t, map[string]string{
		"domain":       "acme",
		"system_id":    "acme",
		"display_name": "Jane Doe",
		"operino_name": "Acme",
		"username":     "jdoe_acme",
		"password":     "pw",
		"base_url":     "https://cdr.example.com",
	}, cfg)
}
