package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gmsf/gmsf-contracts-backend/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned on unique-constraint violations.
	ErrDuplicate = errors.New("duplicate value")
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

var pg = goqu.Dialect("postgres")

const contractColumns = `id, codigo, id_persona, id_membresia, fecha_inicio, fecha_fin,
	precio_pagado, estado, motivo, usuario_registro, usuario_actualizacion, created_at, updated_at`

const clientColumns = `id, nombre, apellido, documento, email, telefono, estado,
	membresia_actual, fecha_fin_membresia, created_at, updated_at`

const membershipColumns = `id, codigo, nombre, descripcion, precio, dias_acceso, vigencia_dias, activo, created_at`

// ---- clients ----

// ListClients returns a page of clients plus the filtered total.
func (db *DB) ListClients(ctx context.Context, page, limit int, search string) ([]models.Client, int, error) {
	ds := pg.From("clients")
	if search != "" {
		pattern := "%" + search + "%"
		ds = ds.Where(goqu.Or(
			goqu.I("nombre").ILike(pattern),
			goqu.I("apellido").ILike(pattern),
			goqu.I("documento").ILike(pattern),
		))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build client count query: %w", err)
	}
	var total int
	if err := db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	listSQL, listArgs, err := ds.
		Select("id", "nombre", "apellido", "documento", "email", "telefono", "estado",
			"membresia_actual", "fecha_fin_membresia", "created_at", "updated_at").
		Order(goqu.I("apellido").Asc(), goqu.I("nombre").Asc()).
		Limit(uint(limit)).
		Offset(uint((page - 1) * limit)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build client list query: %w", err)
	}

	clients := []models.Client{}
	if err := db.SelectContext(ctx, &clients, listSQL, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, total, nil
}

// GetClient retrieves a client by ID.
func (db *DB) GetClient(ctx context.Context, id int) (*models.Client, error) {
	var c models.Client
	err := db.GetContext(ctx, &c,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &c, nil
}

// CreateClient inserts a new client in Inactivo state.
func (db *DB) CreateClient(ctx context.Context, req models.CreateClientRequest) (*models.Client, error) {
	var c models.Client
	err := db.GetContext(ctx, &c,
		`INSERT INTO clients (nombre, apellido, documento, email, telefono, estado)
		 VALUES ($1, $2, $3, $4, $5, 'Inactivo')
		 RETURNING `+clientColumns,
		req.FirstName, req.LastName, req.Document, req.Email, req.Phone)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &c, nil
}

// UpdateClient applies identity-field changes to a client.
func (db *DB) UpdateClient(ctx context.Context, id int, req models.UpdateClientRequest) (*models.Client, error) {
	var c models.Client
	err := db.GetContext(ctx, &c,
		`UPDATE clients SET
			nombre = COALESCE($2, nombre),
			apellido = COALESCE($3, apellido),
			documento = COALESCE($4, documento),
			email = COALESCE($5, email),
			telefono = COALESCE($6, telefono),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+clientColumns,
		id, req.FirstName, req.LastName, req.Document, req.Email, req.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	return &c, nil
}

// GetClientForUpdateTx locks the client row for the duration of tx.
func (db *DB) GetClientForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int) (*models.Client, error) {
	var c models.Client
	err := tx.GetContext(ctx, &c,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock client: %w", err)
	}
	return &c, nil
}

// SetClientMembershipTx writes the client's status and denormalized
// current-membership cache.
func (db *DB) SetClientMembershipTx(ctx context.Context, tx *sqlx.Tx, clientID int,
	status models.ClientStatus, membershipName *string, endDate *models.Date) error {

	_, err := tx.ExecContext(ctx,
		`UPDATE clients SET estado = $2, membresia_actual = $3, fecha_fin_membresia = $4, updated_at = NOW()
		 WHERE id = $1`,
		clientID, status, membershipName, endDate)
	if err != nil {
		return fmt.Errorf("failed to update client membership state: %w", err)
	}
	return nil
}

// CountLiveContractsTx counts the client's contracts that derive to Activo,
// Congelado or Por vencer. excludeID skips one contract (0 skips none).
func (db *DB) CountLiveContractsTx(ctx context.Context, tx *sqlx.Tx, clientID int, today models.Date, excludeID int) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM contracts
		 WHERE id_persona = $1 AND id <> $3
		   AND (estado = 'Congelado' OR (estado = 'Activo' AND fecha_fin >= $2))`,
		clientID, today, excludeID)
	if err != nil {
		return 0, fmt.Errorf("failed to count live contracts: %w", err)
	}
	return count, nil
}

// LatestLiveContractTx returns the membership name and end date of the
// client's most recent live contract, if any.
func (db *DB) LatestLiveContractTx(ctx context.Context, tx *sqlx.Tx, clientID int, today models.Date) (string, models.Date, bool, error) {
	var row struct {
		Name    string      `db:"nombre_membresia"`
		EndDate models.Date `db:"fecha_fin"`
	}
	err := tx.GetContext(ctx, &row,
		`SELECT m.nombre AS nombre_membresia, c.fecha_fin
		 FROM contracts c
		 JOIN memberships m ON m.id = c.id_membresia
		 WHERE c.id_persona = $1
		   AND (c.estado = 'Congelado' OR (c.estado = 'Activo' AND c.fecha_fin >= $2))
		 ORDER BY c.fecha_fin DESC
		 LIMIT 1`,
		clientID, today)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.Date{}, false, nil
	}
	if err != nil {
		return "", models.Date{}, false, fmt.Errorf("failed to get latest live contract: %w", err)
	}
	return row.Name, row.EndDate, true, nil
}

// DeactivateLapsedClients flips every active client with no remaining live
// contract to Inactivo and clears the denormalized membership cache.
// Contract rows are never touched; expiry stays a derived state.
func (db *DB) DeactivateLapsedClients(ctx context.Context, today models.Date) (int64, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE clients SET estado = 'Inactivo', membresia_actual = NULL,
			fecha_fin_membresia = NULL, updated_at = NOW()
		 WHERE estado = 'Activo'
		   AND NOT EXISTS (
			SELECT 1 FROM contracts c
			WHERE c.id_persona = clients.id
			  AND (c.estado = 'Congelado' OR (c.estado = 'Activo' AND c.fecha_fin >= $1))
		 )`,
		today)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate lapsed clients: %w", err)
	}
	return res.RowsAffected()
}

// ---- memberships ----

// ListMemberships returns all plans, optionally only active ones.
func (db *DB) ListMemberships(ctx context.Context, activeOnly bool) ([]models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships`
	if activeOnly {
		query += ` WHERE activo = TRUE`
	}
	query += ` ORDER BY nombre ASC`

	memberships := []models.Membership{}
	if err := db.SelectContext(ctx, &memberships, query); err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return memberships, nil
}

// GetMembership retrieves a plan by ID.
func (db *DB) GetMembership(ctx context.Context, id int) (*models.Membership, error) {
	var m models.Membership
	err := db.GetContext(ctx, &m,
		`SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

// GetMembershipForUpdateTx locks the membership row for the duration of tx.
func (db *DB) GetMembershipForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int) (*models.Membership, error) {
	var m models.Membership
	err := tx.GetContext(ctx, &m,
		`SELECT `+membershipColumns+` FROM memberships WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock membership: %w", err)
	}
	return &m, nil
}

// CreateMembership inserts a new plan with a generated M-code.
func (db *DB) CreateMembership(ctx context.Context, req models.CreateMembershipRequest) (*models.Membership, error) {
	var m models.Membership
	err := db.GetContext(ctx, &m,
		`INSERT INTO memberships (codigo, nombre, descripcion, precio, dias_acceso, vigencia_dias, activo)
		 VALUES ('M' || LPAD(NEXTVAL('membership_code_seq')::TEXT, 4, '0'), $1, $2, $3, $4, $5, TRUE)
		 RETURNING `+membershipColumns,
		req.Name, req.Description, req.Price, req.AccessDays, req.ValidityDays)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}
	return &m, nil
}

// UpdateMembership writes the merged plan fields back.
func (db *DB) UpdateMembership(ctx context.Context, m *models.Membership) (*models.Membership, error) {
	var out models.Membership
	err := db.GetContext(ctx, &out,
		`UPDATE memberships SET nombre = $2, descripcion = $3, precio = $4,
			dias_acceso = $5, vigencia_dias = $6
		 WHERE id = $1
		 RETURNING `+membershipColumns,
		m.ID, m.Name, m.Description, m.Price, m.AccessDays, m.ValidityDays)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update membership: %w", err)
	}
	return &out, nil
}

// CountBlockingContractsTx counts contracts on a membership that derive to
// Activo or Por vencer. Frozen contracts do not block deactivation.
func (db *DB) CountBlockingContractsTx(ctx context.Context, tx *sqlx.Tx, membershipID int, today models.Date) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM contracts
		 WHERE id_membresia = $1 AND estado = 'Activo' AND fecha_fin >= $2`,
		membershipID, today)
	if err != nil {
		return 0, fmt.Errorf("failed to count blocking contracts: %w", err)
	}
	return count, nil
}

// SetMembershipActiveTx flips the activo flag inside tx.
func (db *DB) SetMembershipActiveTx(ctx context.Context, tx *sqlx.Tx, id int, active bool) (*models.Membership, error) {
	var m models.Membership
	err := tx.GetContext(ctx, &m,
		`UPDATE memberships SET activo = $2 WHERE id = $1 RETURNING `+membershipColumns,
		id, active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle membership: %w", err)
	}
	return &m, nil
}

// ---- contracts ----

// ListContracts returns a page of contracts matching the filter, with the
// client and membership names joined in. The estado filter matches the
// derived display status, so Vencido and Por vencer are expressed as date
// predicates over persisted Activo rows.
func (db *DB) ListContracts(ctx context.Context, f models.ContractListFilter, today models.Date) ([]models.Contract, int, error) {
	ds := pg.From(goqu.T("contracts").As("c")).
		Join(goqu.T("clients").As("p"), goqu.On(goqu.I("c.id_persona").Eq(goqu.I("p.id")))).
		Join(goqu.T("memberships").As("m"), goqu.On(goqu.I("c.id_membresia").Eq(goqu.I("m.id"))))

	if f.ClientID > 0 {
		ds = ds.Where(goqu.I("c.id_persona").Eq(f.ClientID))
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		ds = ds.Where(goqu.Or(
			goqu.I("c.codigo").ILike(pattern),
			goqu.I("p.nombre").ILike(pattern),
			goqu.I("p.apellido").ILike(pattern),
			goqu.I("p.documento").ILike(pattern),
		))
	}
	if !f.DateFrom.IsZero() {
		ds = ds.Where(goqu.I("c.fecha_inicio").Gte(f.DateFrom))
	}
	if !f.DateTo.IsZero() {
		ds = ds.Where(goqu.I("c.fecha_inicio").Lte(f.DateTo))
	}

	switch f.Status {
	case models.ContractCancelled, models.ContractFrozen:
		ds = ds.Where(goqu.I("c.estado").Eq(string(f.Status)))
	case models.ContractExpired:
		ds = ds.Where(goqu.I("c.estado").Eq("Activo"), goqu.I("c.fecha_fin").Lt(today))
	case models.ContractExpiring:
		ds = ds.Where(goqu.I("c.estado").Eq("Activo"),
			goqu.I("c.fecha_fin").Gte(today),
			goqu.I("c.fecha_fin").Lte(today.AddDays(7)))
	case models.ContractActive:
		ds = ds.Where(goqu.I("c.estado").Eq("Activo"), goqu.I("c.fecha_fin").Gt(today.AddDays(7)))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build contract count query: %w", err)
	}
	var total int
	if err := db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count contracts: %w", err)
	}

	listSQL, listArgs, err := ds.
		Select(
			goqu.I("c.id"), goqu.I("c.codigo"), goqu.I("c.id_persona"), goqu.I("c.id_membresia"),
			goqu.I("c.fecha_inicio"), goqu.I("c.fecha_fin"), goqu.I("c.precio_pagado"),
			goqu.I("c.estado"), goqu.I("c.motivo"), goqu.I("c.usuario_registro"),
			goqu.I("c.usuario_actualizacion"), goqu.I("c.created_at"), goqu.I("c.updated_at"),
			goqu.L("p.nombre || ' ' || p.apellido").As("nombre_persona"),
			goqu.I("m.nombre").As("nombre_membresia"),
		).
		Order(goqu.I("c.created_at").Desc()).
		Limit(uint(f.Limit)).
		Offset(uint((f.Page - 1) * f.Limit)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build contract list query: %w", err)
	}

	contracts := []models.Contract{}
	if err := db.SelectContext(ctx, &contracts, listSQL, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to list contracts: %w", err)
	}
	return contracts, total, nil
}

// GetContract retrieves a contract with joined names.
func (db *DB) GetContract(ctx context.Context, id int) (*models.Contract, error) {
	var c models.Contract
	err := db.GetContext(ctx, &c,
		`SELECT c.id, c.codigo, c.id_persona, c.id_membresia, c.fecha_inicio, c.fecha_fin,
			c.precio_pagado, c.estado, c.motivo, c.usuario_registro, c.usuario_actualizacion,
			c.created_at, c.updated_at,
			p.nombre || ' ' || p.apellido AS nombre_persona,
			m.nombre AS nombre_membresia
		 FROM contracts c
		 JOIN clients p ON p.id = c.id_persona
		 JOIN memberships m ON m.id = c.id_membresia
		 WHERE c.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return &c, nil
}

// GetContractForUpdateTx locks the contract row for the duration of tx.
func (db *DB) GetContractForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int) (*models.Contract, error) {
	var c models.Contract
	err := tx.GetContext(ctx, &c,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock contract: %w", err)
	}
	return &c, nil
}

// CreateContractTx inserts an Activo contract with a generated C-code.
func (db *DB) CreateContractTx(ctx context.Context, tx *sqlx.Tx, c *models.Contract) (*models.Contract, error) {
	var out models.Contract
	err := tx.GetContext(ctx, &out,
		`INSERT INTO contracts (codigo, id_persona, id_membresia, fecha_inicio, fecha_fin,
			precio_pagado, estado, usuario_registro)
		 VALUES ('C' || LPAD(NEXTVAL('contract_code_seq')::TEXT, 4, '0'), $1, $2, $3, $4, $5, 'Activo', $6)
		 RETURNING `+contractColumns,
		c.ClientID, c.MembershipID, c.StartDate, c.EndDate, c.PricePaid, c.RegisteredBy)
	if err != nil {
		return nil, fmt.Errorf("failed to create contract: %w", err)
	}
	return &out, nil
}

// UpdateContractRowTx writes membership/date/price edits back to a contract.
func (db *DB) UpdateContractRowTx(ctx context.Context, tx *sqlx.Tx, c *models.Contract) (*models.Contract, error) {
	var out models.Contract
	err := tx.GetContext(ctx, &out,
		`UPDATE contracts SET id_membresia = $2, fecha_inicio = $3, fecha_fin = $4,
			precio_pagado = $5, estado = $6, motivo = $7, usuario_actualizacion = $8, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+contractColumns,
		c.ID, c.MembershipID, c.StartDate, c.EndDate, c.PricePaid, c.Status, c.Reason, c.UpdatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update contract: %w", err)
	}
	return &out, nil
}

// SetContractStatusTx applies a status transition to a contract.
func (db *DB) SetContractStatusTx(ctx context.Context, tx *sqlx.Tx, id int,
	status models.ContractStatus, reason, updatedBy *string) (*models.Contract, error) {

	var out models.Contract
	err := tx.GetContext(ctx, &out,
		`UPDATE contracts SET estado = $2, motivo = $3, usuario_actualizacion = $4, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+contractColumns,
		id, status, reason, updatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set contract status: %w", err)
	}
	return &out, nil
}

// AddHistoryTx appends a transition record for a contract.
func (db *DB) AddHistoryTx(ctx context.Context, tx *sqlx.Tx, h models.ContractHistory) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO contract_history (id_contrato, estado_anterior, estado_nuevo, motivo, usuario)
		 VALUES ($1, $2, $3, $4, $5)`,
		h.ContractID, h.PreviousStatus, h.NewStatus, h.Reason, h.ChangedBy)
	if err != nil {
		return fmt.Errorf("failed to record contract history: %w", err)
	}
	return nil
}

// ListContractHistory returns a contract's transitions ordered by fecha_cambio.
func (db *DB) ListContractHistory(ctx context.Context, contractID int) ([]models.ContractHistory, error) {
	history := []models.ContractHistory{}
	err := db.SelectContext(ctx, &history,
		`SELECT id, id_contrato, estado_anterior, estado_nuevo, motivo, usuario, fecha_cambio
		 FROM contract_history
		 WHERE id_contrato = $1
		 ORDER BY fecha_cambio ASC, id ASC`,
		contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contract history: %w", err)
	}
	return history, nil
}
