package scylladb

// DDL for the chat keyspace. Every statement is idempotent so schema
// bootstrap can run on each start.

const createKeyspace = `
  CREATE KEYSPACE IF NOT EXISTS nexus
    WITH REPLICATION = {
      'class': 'SimpleStrategy',
      'replication_factor': 1
    };`

const createUsersTable = `
  CREATE TABLE IF NOT EXISTS nexus.users (
    uuid UUID,
    username text,
    password text,
    role Tinyint,
    public_key text,
    created_at timestamp,
    PRIMARY KEY(uuid, username)
  );`

const createSecretKeysTable = `
  CREATE TABLE IF NOT EXISTS nexus.secret_keys (
    user UUID,
    private_key blob,
    PRIMARY KEY(user)
  );`

const createSessionsTable = `
  CREATE TABLE IF NOT EXISTS nexus.sessions (
    jwt text,
    user UUID,
    location text,
    device_name text,
    device_type text,
    device_os text,
    created_at timestamp,
    PRIMARY KEY(jwt, user)
  );`

const createMessagesTable = `
  CREATE TABLE IF NOT EXISTS nexus.messages (
    uuid UUID,
    text text,
    nonce text,
    filename text,
    filepath text,
    sender UUID,
    receiver UUID,
    sent Boolean,
    read Boolean,
    edited Boolean,
    msg_type Tinyint,
    secret Boolean,
    created_at timestamp,
    edited_at timestamp,
    PRIMARY KEY(created_at, sender, uuid)
  );`

const createCallsTable = `
  CREATE TABLE IF NOT EXISTS nexus.calls (
    uuid UUID,
    sender UUID,
    receiver UUID,
    duration BigInt,
    accepted Boolean,
    secret Boolean,
    created_at timestamp,
    PRIMARY KEY(uuid, created_at))
    WITH CLUSTERING ORDER BY (created_at DESC);`

const createMediaTable = `
  CREATE TABLE IF NOT EXISTS nexus.media (
    uuid UUID,
    name text,
    path text,
    type Tinyint,
    sender UUID,
    created_at timestamp,
    PRIMARY KEY(uuid, created_at)
  );`

var schemaStatements = []string{
	createUsersTable,
	createSecretKeysTable,
	createSessionsTable,
	createMessagesTable,
	createCallsTable,
	createMediaTable,
}
