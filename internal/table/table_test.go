package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTable = `
groups:
  - name: Blackout
    weight: 60
    actions:
      - "Print lights-out"
    multipliers:
      admin: 20
      "3": 5
  - name: Broadcast
    weight: 40
    actions:
      - "Print attention; Print stand-by"
`

func TestLoad_ParsesGroups(t *testing.T) {
	tbl, err := Load([]byte(sampleTable))
	require.NoError(t, err)
	require.Len(t, tbl.Groups, 2)

	g := tbl.Groups[0]
	assert.Equal(t, "Blackout", g.Name)
	assert.Equal(t, 60.0, g.Weight)
	assert.Equal(t, []string{"Print lights-out"}, g.Actions)
	assert.Equal(t, map[string]float64{"admin": 20, "3": 5}, g.Multipliers)

	got, found := tbl.Group("Broadcast")
	require.True(t, found)
	assert.Equal(t, 40.0, got.Weight)
	_, found = tbl.Group("Nope")
	assert.False(t, found)
}

func TestLoad_EmptyGroupsAllowed(t *testing.T) {
	tbl, err := Load([]byte("groups: []"))
	require.NoError(t, err)
	assert.Empty(t, tbl.Groups)
}

func TestLoad_RejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"missing name": `
groups:
  - weight: 10
    actions: []
`,
		"empty name": `
groups:
  - name: ""
    weight: 10
    actions: []
`,
		"weight not a number": `
groups:
  - name: A
    weight: heavy
    actions: []
`,
		"unknown field": `
groups:
  - name: A
    weight: 10
    actions: []
    color: red
`,
		"multiplier not a number": `
groups:
  - name: A
    weight: 10
    actions: []
    multipliers:
      admin: loads
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	_, err := Load([]byte("groups: ["))
	assert.Error(t, err)
}
