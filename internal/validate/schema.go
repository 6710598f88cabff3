package validate

// workflowSchema is the JSON-Schema document enforced by the schema layer
// (spec §3, §4.C.1), grounded on the teacher-adjacent pack's gojsonschema
// usage (yesoreyeram-thaiyyal backend/pkg/executor/schema_validator.go)
// generalized from a single node's payload to the whole workflow IR.
const workflowSchema = `{
  "type": "object",
  "required": ["ir_version", "nodes", "edges"],
  "properties": {
    "ir_version": {"type": "string", "minLength": 1},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "pattern": "^\\w+$"},
          "type": {"type": "string", "minLength": 1},
          "purpose": {"type": "string", "maxLength": 200},
          "params": {"type": "object"}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to"],
        "properties": {
          "from": {"type": "string"},
          "to": {"type": "string"},
          "action": {"type": "string"},
          "when": {"type": "string"}
        }
      }
    },
    "start_node": {"type": "string"},
    "inputs": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"enum": ["string", "number", "boolean", "object", "array"]},
          "description": {"type": "string"},
          "required": {"type": "boolean"},
          "stdin": {"type": "boolean"}
        }
      }
    },
    "outputs": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["source"],
        "properties": {
          "description": {"type": "string"},
          "source": {"type": "string"}
        }
      }
    },
    "template_resolution_mode": {"enum": ["strict", "permissive", ""]}
  }
}`
