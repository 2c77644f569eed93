package db

// SchemaSQL defines the thread, message and job tables.
const SchemaSQL = `
    -- ==========================================================================
    -- THREAD TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS thread SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title ON thread TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON thread TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- MESSAGE TABLE
    -- ==========================================================================
    -- One row per message. seq keeps conversation order; content holds the
    -- JSON encoding of the message content so arbitrary numbers survive.
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS thread ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS seq ON message TYPE int;
    DEFINE FIELD IF NOT EXISTS msg_id ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS role ON message TYPE string ASSERT $value IN ["user", "assistant"];
    DEFINE FIELD IF NOT EXISTS content ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS timestamp ON message TYPE datetime;

    REMOVE INDEX IF EXISTS message_thread_seq ON message;
    DEFINE INDEX IF NOT EXISTS message_seq ON message FIELDS thread, seq UNIQUE;
    DEFINE INDEX IF NOT EXISTS message_unique_id ON message FIELDS thread, msg_id UNIQUE;

    -- ==========================================================================
    -- JOB TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title ON job TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON job TYPE string;
    DEFINE FIELD IF NOT EXISTS priority ON job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS status ON job TYPE string
        ASSERT $value IN ["pending", "running", "completed", "failed", "terminated"];
    DEFINE FIELD IF NOT EXISTS progress ON job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS text ON job TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS images ON job TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS error ON job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON job TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS job_status ON job FIELDS status;
    DEFINE INDEX IF NOT EXISTS job_created ON job FIELDS created_at;
`

// tables lists every table in deletion order.
var tables = []string{"message", "thread", "job"}
