// Package schema maps the remote tables' column names onto the fields the
// market data layer reads. The mapping is resolved once at startup and passed
// explicitly to every fetcher.
package schema

import (
	"fmt"
	"strings"
)

// Mapping names the tables and columns used by the fetchers.
type Mapping struct {
	CommuneTable     string `yaml:"commune_table"`
	TransactionTable string `yaml:"transaction_table"`

	// JoinColumn links the two tables. It must exist in both.
	JoinColumn string `yaml:"join_column"`

	InseeColumn  string `yaml:"insee_column"`
	PostalColumn string `yaml:"postal_column"`
	NameColumn   string `yaml:"name_column"`

	DateColumn  string `yaml:"date_column"`
	ValueColumn string `yaml:"value_column"`
	AreaColumn  string `yaml:"area_column"`
	TypeColumn  string `yaml:"type_column"`

	// RentColumnPriority lists rent-per-m² columns, most preferred first.
	RentColumnPriority []string `yaml:"rent_column_priority"`

	// ContextColumns lists socio-demographic attributes shown alongside the metrics.
	ContextColumns []string `yaml:"context_columns"`
}

// Default returns the mapping for the Dim_ville / Fct_transaction_immo tables,
// joined on postal code.
func Default() Mapping {
	return Mapping{
		CommuneTable:     "Dim_ville",
		TransactionTable: "Fct_transaction_immo",
		JoinColumn:       "code_postal",
		InseeColumn:      "code_insee",
		PostalColumn:     "code_postal",
		NameColumn:       "nom_commune",
		DateColumn:       "date_mutation",
		ValueColumn:      "valeur_fonciere",
		AreaColumn:       "surface_reelle_bati",
		TypeColumn:       "type_local",
		RentColumnPriority: []string{
			"loypredm2",
			"loyer_m2_appart_moyen_all",
			"loyer_m2_appart_t1_t2",
			"loyer_m2_appart_t3_plus",
			"loyer_m2_maison_moyen",
		},
		ContextColumns: []string{
			"pop_totale",
			"part_pop_15_29_ans_pct",
			"revenu_dispo_median_uc",
			"salaire_net_mensuel_moyen",
			"taux_chomage_pct",
			"taux_chomage_calcule_pct",
			"part_proprietaires_pct",
			"part_logements_sociaux_pct",
			"part_cadres_pct",
			"part_residences_secondaires_pct",
		},
	}
}

// Validate reports the first required field left empty.
func (m Mapping) Validate() error {
	required := []struct {
		name, value string
	}{
		{"commune_table", m.CommuneTable},
		{"transaction_table", m.TransactionTable},
		{"join_column", m.JoinColumn},
		{"insee_column", m.InseeColumn},
		{"postal_column", m.PostalColumn},
		{"name_column", m.NameColumn},
		{"date_column", m.DateColumn},
		{"value_column", m.ValueColumn},
		{"area_column", m.AreaColumn},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("schema: %s is required", r.name)
		}
	}
	if m.JoinColumn != m.InseeColumn && m.JoinColumn != m.PostalColumn {
		return fmt.Errorf("schema: join_column %q must be the insee or postal column", m.JoinColumn)
	}
	return nil
}

// DirectoryColumns returns the projection used to list communes.
func (m Mapping) DirectoryColumns() []string {
	return []string{m.InseeColumn, m.PostalColumn, m.NameColumn}
}

// TransactionColumns returns the projection used to fetch sales.
func (m Mapping) TransactionColumns() []string {
	cols := []string{m.DateColumn, m.ValueColumn, m.AreaColumn}
	if m.TypeColumn != "" {
		cols = append(cols, m.TypeColumn)
	}
	return cols
}

// JoinOnInsee reports whether the join key is the INSEE code.
func (m Mapping) JoinOnInsee() bool {
	return m.JoinColumn == m.InseeColumn
}
