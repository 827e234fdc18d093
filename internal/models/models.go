package models

import "time"

// ContractStatus represents persisted and derived contract states.
// Only Activo, Congelado and Cancelado are ever written to storage;
// Vencido and Por vencer are computed from fecha_fin at read time.
type ContractStatus string

const (
	ContractActive    ContractStatus = "Activo"
	ContractFrozen    ContractStatus = "Congelado"
	ContractCancelled ContractStatus = "Cancelado"
	ContractExpired   ContractStatus = "Vencido"
	ContractExpiring  ContractStatus = "Por vencer"
)

// ClientStatus represents valid client states.
type ClientStatus string

const (
	ClientActive   ClientStatus = "Activo"
	ClientInactive ClientStatus = "Inactivo"
)

// Client represents a gym client (persona).
type Client struct {
	ID                int          `db:"id" json:"id"`
	FirstName         string       `db:"nombre" json:"nombre"`
	LastName          string       `db:"apellido" json:"apellido"`
	Document          string       `db:"documento" json:"documento"`
	Email             *string      `db:"email" json:"email,omitempty"`
	Phone             *string      `db:"telefono" json:"telefono,omitempty"`
	Status            ClientStatus `db:"estado" json:"estado"`
	CurrentMembership *string      `db:"membresia_actual" json:"membresia_actual,omitempty"`
	MembershipEndDate *Date        `db:"fecha_fin_membresia" json:"fecha_fin_membresia,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"fecha_registro"`
	UpdatedAt         time.Time    `db:"updated_at" json:"fecha_actualizacion"`
}

// Membership represents a purchasable plan, distinct from a client's contract.
type Membership struct {
	ID           int       `db:"id" json:"id"`
	Code         string    `db:"codigo" json:"codigo"`
	Name         string    `db:"nombre" json:"nombre"`
	Description  *string   `db:"descripcion" json:"descripcion,omitempty"`
	Price        float64   `db:"precio" json:"precio"`
	AccessDays   int       `db:"dias_acceso" json:"dias_acceso"`
	ValidityDays int       `db:"vigencia_dias" json:"vigencia_dias"`
	Active       bool      `db:"activo" json:"activo"`
	CreatedAt    time.Time `db:"created_at" json:"fecha_creacion"`
}

// Contract represents a client's purchase of a membership for a bounded
// validity period. Estado holds the persisted status; the display status is
// derived from fecha_fin and exposed through ContractView.
type Contract struct {
	ID           int            `db:"id" json:"id"`
	Code         string         `db:"codigo" json:"codigo"`
	ClientID     int            `db:"id_persona" json:"id_persona"`
	MembershipID int            `db:"id_membresia" json:"id_membresia"`
	StartDate    Date           `db:"fecha_inicio" json:"fecha_inicio"`
	EndDate      Date           `db:"fecha_fin" json:"fecha_fin"`
	PricePaid    float64        `db:"precio_pagado" json:"precio_pagado"`
	Status       ContractStatus `db:"estado" json:"-"`
	Reason       *string        `db:"motivo" json:"motivo,omitempty"`
	RegisteredBy *string        `db:"usuario_registro" json:"usuario_registro,omitempty"`
	UpdatedBy    *string        `db:"usuario_actualizacion" json:"usuario_actualizacion,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"fecha_registro"`
	UpdatedAt    time.Time      `db:"updated_at" json:"fecha_actualizacion"`

	// Populated by list/detail JOINs.
	ClientName     string `db:"nombre_persona" json:"nombre_persona,omitempty"`
	MembershipName string `db:"nombre_membresia" json:"nombre_membresia,omitempty"`
}

// ContractView is a Contract with the derived display status filled in.
type ContractView struct {
	Contract
	DisplayStatus ContractStatus `json:"estado"`
}

// ContractHistory is an append-only record of a contract state transition.
type ContractHistory struct {
	ID             int             `db:"id" json:"id"`
	ContractID     int             `db:"id_contrato" json:"id_contrato"`
	PreviousStatus *ContractStatus `db:"estado_anterior" json:"estado_anterior,omitempty"`
	NewStatus      ContractStatus  `db:"estado_nuevo" json:"estado_nuevo"`
	Reason         *string         `db:"motivo" json:"motivo,omitempty"`
	ChangedBy      *string         `db:"usuario" json:"usuario,omitempty"`
	ChangedAt      time.Time       `db:"fecha_cambio" json:"fecha_cambio"`
}

// API request types

type CreateContractRequest struct {
	ClientID     int     `json:"id_persona"`
	MembershipID int     `json:"id_membresia"`
	StartDate    Date    `json:"fecha_inicio"`
	RegisteredBy *string `json:"usuario_registro,omitempty"`
}

type UpdateContractRequest struct {
	MembershipID *int            `json:"id_membresia,omitempty"`
	StartDate    *Date           `json:"fecha_inicio,omitempty"`
	Status       *ContractStatus `json:"estado,omitempty"`
	Reason       *string         `json:"motivo,omitempty"`
	UpdatedBy    *string         `json:"usuario_actualizacion,omitempty"`
}

type RenewContractRequest struct {
	ContractID   int     `json:"id_contrato"`
	MembershipID int     `json:"id_membresia"`
	StartDate    Date    `json:"fecha_inicio"`
	RegisteredBy *string `json:"usuario_registro,omitempty"`
}

type FreezeContractRequest struct {
	ContractID int     `json:"id_contrato"`
	Reason     string  `json:"motivo"`
	UpdatedBy  *string `json:"usuario_actualizacion,omitempty"`
}

type CancelContractRequest struct {
	Reason    string  `json:"motivo"`
	UpdatedBy *string `json:"usuario_actualizacion,omitempty"`
}

type CreateMembershipRequest struct {
	Name         string  `json:"nombre"`
	Description  *string `json:"descripcion,omitempty"`
	Price        float64 `json:"precio"`
	AccessDays   int     `json:"dias_acceso"`
	ValidityDays int     `json:"vigencia_dias"`
}

type UpdateMembershipRequest struct {
	Name         *string  `json:"nombre,omitempty"`
	Description  *string  `json:"descripcion,omitempty"`
	Price        *float64 `json:"precio,omitempty"`
	AccessDays   *int     `json:"dias_acceso,omitempty"`
	ValidityDays *int     `json:"vigencia_dias,omitempty"`
}

type CreateClientRequest struct {
	FirstName string  `json:"nombre"`
	LastName  string  `json:"apellido"`
	Document  string  `json:"documento"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"telefono,omitempty"`
}

type UpdateClientRequest struct {
	FirstName *string `json:"nombre,omitempty"`
	LastName  *string `json:"apellido,omitempty"`
	Document  *string `json:"documento,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"telefono,omitempty"`
}

// ContractListFilter carries the GET /contracts query parameters.
type ContractListFilter struct {
	Page     int
	Limit    int
	Search   string
	Status   ContractStatus
	ClientID int
	DateFrom Date
	DateTo   Date
}

// Page is a paginated listing envelope.
type Page struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}
