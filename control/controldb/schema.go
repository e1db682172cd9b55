// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controldb

import (
	"context"
)

// schema is applied by CreateSchema. Full migration tooling is intentionally
// out of scope; tests and first-run setup create the schema from scratch.
const schema = `
CREATE TYPE campaign_state AS ENUM (
	'draft', 'active', 'paused', 'completed', 'archived', 'error'
);
CREATE TYPE attack_state AS ENUM (
	'pending', 'running', 'paused', 'completed', 'failed', 'abandoned'
);
CREATE TYPE attack_mode AS ENUM (
	'dictionary', 'mask', 'hybrid_dict_mask', 'hybrid_mask_dict'
);
CREATE TYPE task_status AS ENUM (
	'pending', 'running', 'completed', 'failed', 'abandoned'
);

CREATE TABLE users (
	id             bigserial PRIMARY KEY,
	email          text NOT NULL UNIQUE,
	name           text NOT NULL DEFAULT '',
	password_hash  bytea,
	api_key_hash   bytea NOT NULL,
	is_active      boolean NOT NULL DEFAULT true,
	is_superuser   boolean NOT NULL DEFAULT false,
	created_at     timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX users_api_key_hash_idx ON users (api_key_hash);

CREATE TABLE projects (
	id          bigserial PRIMARY KEY,
	name        text NOT NULL,
	description text NOT NULL DEFAULT '',
	created_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE project_memberships (
	project_id bigint NOT NULL REFERENCES projects (id) ON DELETE CASCADE,
	user_id    bigint NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	role       text NOT NULL DEFAULT 'member',
	PRIMARY KEY (project_id, user_id)
);

CREATE TABLE hash_lists (
	id             bigserial PRIMARY KEY,
	project_id     bigint REFERENCES projects (id) ON DELETE CASCADE,
	name           text NOT NULL,
	description    text NOT NULL DEFAULT '',
	hash_type_id   integer NOT NULL DEFAULT 0,
	is_unavailable boolean NOT NULL DEFAULT false,
	created_at     timestamptz NOT NULL DEFAULT now(),
	updated_at     timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE hash_items (
	id           bigserial PRIMARY KEY,
	hash_list_id bigint NOT NULL REFERENCES hash_lists (id) ON DELETE CASCADE,
	hash         text NOT NULL,
	salt         text,
	plain_text   text
);
CREATE INDEX hash_items_hash_list_id_idx ON hash_items (hash_list_id);

CREATE TABLE campaigns (
	id           bigserial PRIMARY KEY,
	project_id   bigint NOT NULL REFERENCES projects (id) ON DELETE CASCADE,
	hash_list_id bigint NOT NULL REFERENCES hash_lists (id),
	name         text NOT NULL,
	description  text NOT NULL DEFAULT '',
	priority     integer NOT NULL DEFAULT 0,
	state        campaign_state NOT NULL DEFAULT 'draft',
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX campaigns_project_id_idx ON campaigns (project_id);

CREATE TABLE resources (
	id            uuid PRIMARY KEY,
	project_id    bigint REFERENCES projects (id) ON DELETE CASCADE,
	file_name     text NOT NULL,
	file_label    text,
	resource_type text NOT NULL,
	line_format   text NOT NULL DEFAULT '',
	line_encoding text NOT NULL DEFAULT 'utf-8',
	used_for_modes text[] NOT NULL DEFAULT '{}',
	source        text NOT NULL DEFAULT 'upload',
	line_count    bigint NOT NULL DEFAULT 0,
	byte_size     bigint NOT NULL DEFAULT 0,
	checksum      text NOT NULL DEFAULT '',
	guid          uuid NOT NULL,
	is_uploaded   boolean NOT NULL DEFAULT false,
	tags          text[] NOT NULL DEFAULT '{}',
	content_lines text[] NOT NULL DEFAULT '{}',
	created_at    timestamptz NOT NULL DEFAULT now(),
	updated_at    timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX resources_pending_idx ON resources (created_at) WHERE NOT is_uploaded;

CREATE TABLE attacks (
	id                 bigserial PRIMARY KEY,
	campaign_id        bigint NOT NULL REFERENCES campaigns (id) ON DELETE CASCADE,
	name               text NOT NULL DEFAULT '',
	attack_mode        attack_mode NOT NULL,
	position           integer NOT NULL DEFAULT 0,
	state              attack_state NOT NULL DEFAULT 'pending',
	mask               text NOT NULL DEFAULT '',
	word_list_id       uuid REFERENCES resources (id),
	rule_list_id       uuid REFERENCES resources (id),
	mask_list_id       uuid REFERENCES resources (id),
	left_rule          text NOT NULL DEFAULT '',
	hash_list_url      text NOT NULL DEFAULT '',
	hash_list_checksum text NOT NULL DEFAULT '',
	created_at         timestamptz NOT NULL DEFAULT now(),
	updated_at         timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX attacks_campaign_id_idx ON attacks (campaign_id, position);

CREATE TABLE agents (
	id                 bigserial PRIMARY KEY,
	host_name          text NOT NULL,
	client_signature   text NOT NULL DEFAULT '',
	enabled            boolean NOT NULL DEFAULT true,
	state              text NOT NULL DEFAULT 'offline',
	update_interval    integer NOT NULL DEFAULT 30,
	use_native_hashcat boolean NOT NULL DEFAULT false,
	backend_devices    text NOT NULL DEFAULT '',
	project_ids        bigint[] NOT NULL DEFAULT '{}',
	last_seen_at       timestamptz,
	created_at         timestamptz NOT NULL DEFAULT now(),
	updated_at         timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE agent_benchmarks (
	id           bigserial PRIMARY KEY,
	agent_id     bigint NOT NULL REFERENCES agents (id) ON DELETE CASCADE,
	hash_type_id integer NOT NULL,
	hash_speed   double precision NOT NULL,
	device       text NOT NULL DEFAULT '',
	runtime_ms   bigint NOT NULL DEFAULT 0,
	created_at   timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX agent_benchmarks_agent_id_idx ON agent_benchmarks (agent_id);

CREATE TABLE agent_capabilities (
	agent_id    bigint NOT NULL REFERENCES agents (id) ON DELETE CASCADE,
	device_id   integer NOT NULL,
	device_name text NOT NULL DEFAULT '',
	device_type text NOT NULL DEFAULT '',
	enabled     boolean NOT NULL DEFAULT true,
	PRIMARY KEY (agent_id, device_id)
);

CREATE TABLE agent_errors (
	id         bigserial PRIMARY KEY,
	agent_id   bigint NOT NULL REFERENCES agents (id) ON DELETE CASCADE,
	message    text NOT NULL,
	severity   text NOT NULL DEFAULT 'warning',
	task_id    bigint,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX agent_errors_agent_id_idx ON agent_errors (agent_id, created_at DESC);

CREATE TABLE tasks (
	id             bigserial PRIMARY KEY,
	attack_id      bigint NOT NULL REFERENCES attacks (id) ON DELETE CASCADE,
	agent_id       bigint REFERENCES agents (id) ON DELETE SET NULL,
	status         task_status NOT NULL DEFAULT 'pending',
	progress       double precision NOT NULL DEFAULT 0,
	keyspace_total bigint NOT NULL DEFAULT 0,
	created_at     timestamptz NOT NULL DEFAULT now(),
	updated_at     timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX tasks_attack_id_idx ON tasks (attack_id);
CREATE INDEX tasks_status_idx ON tasks (status);

CREATE TABLE task_status_updates (
	id           bigserial PRIMARY KEY,
	task_id      bigint NOT NULL REFERENCES tasks (id) ON DELETE CASCADE,
	status       task_status NOT NULL,
	session_name text NOT NULL DEFAULT '',
	progress     double precision NOT NULL DEFAULT 0,
	timestamp    timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX task_status_updates_task_id_idx ON task_status_updates (task_id, timestamp DESC);
`

const dropSchema = `
DROP TABLE IF EXISTS task_status_updates, tasks, agent_errors, agent_capabilities,
	agent_benchmarks, agents, attacks, resources, campaigns, hash_items, hash_lists,
	project_memberships, projects, users CASCADE;
DROP TYPE IF EXISTS campaign_state, attack_state, attack_mode, task_status;
`

// CreateSchema creates all tables, types and indexes.
func (db *DB) CreateSchema(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	_, err = db.db.ExecContext(ctx, schema)
	return Error.Wrap(err)
}

// DropSchema drops everything CreateSchema creates.
func (db *DB) DropSchema(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	_, err = db.db.ExecContext(ctx, dropSchema)
	return Error.Wrap(err)
}
