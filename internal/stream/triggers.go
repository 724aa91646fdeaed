package stream

import "fmt"

// maxNotifyPayload is the largest NOTIFY payload Postgres accepts. A larger
// one raises an error inside the trigger and aborts the write.
const maxNotifyPayload = 7999

// triggerFunctionSQL publishes every row change on NotifyChannel. A soft delete
// (deleted_at going from NULL to a value) is reported as DELETE. Rows too big
// for one notification are sent without their text columns and flagged
// partial; PostgresSource reloads them.
var triggerFunctionSQL = fmt.Sprintf(`
CREATE OR REPLACE FUNCTION feedsync_notify_change() RETURNS trigger AS $$
DECLARE
	op text := TG_OP;
	new_row jsonb := NULL;
	old_row jsonb := NULL;
	payload text;
BEGIN
	IF TG_OP IN ('INSERT', 'UPDATE') THEN
		new_row := to_jsonb(NEW);
	END IF;
	IF TG_OP IN ('UPDATE', 'DELETE') THEN
		old_row := to_jsonb(OLD);
	END IF;
	IF TG_OP = 'UPDATE'
		AND (new_row ->> 'deleted_at') IS NOT NULL
		AND (old_row ->> 'deleted_at') IS NULL THEN
		op := 'DELETE';
		old_row := new_row;
		new_row := NULL;
	END IF;
	payload := json_build_object(
		'table', TG_TABLE_NAME,
		'type', op,
		'new', new_row,
		'old', old_row
	)::text;
	IF octet_length(payload) > %d THEN
		payload := json_build_object(
			'table', TG_TABLE_NAME,
			'type', op,
			'new', new_row - '{body,file,text}'::text[],
			'old', old_row - '{body,file,text}'::text[],
			'partial', true
		)::text;
	END IF;
	PERFORM pg_notify('%s', payload);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;`, maxNotifyPayload, NotifyChannel)

// TriggerStatements returns the DDL that installs change notification triggers
// on the given tables. Statements are idempotent.
func TriggerStatements(tables ...string) []string {
	stmts := []string{triggerFunctionSQL}
	for _, table := range tables {
		name := "feedsync_" + table + "_change"
		stmts = append(stmts,
			fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, name, table),
			fmt.Sprintf(`CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION feedsync_notify_change()`, name, table),
		)
	}
	return stmts
}
