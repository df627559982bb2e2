package validators

import "go.mongodb.org/mongo-driver/bson"

// AppointmentValidator mirrors model.Reservation. The _id is the slot id,
// "YYYY-MM-DDTHH:MM".
var AppointmentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"date",
			"time",
			"patient_name",
			"patient_email",
			"booked_by",
			"booked_at",
			"effective_moment",
		},
		"additionalProperties": false,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}$`,
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"time": bson.M{
				"bsonType": "string",
				"pattern":  `^([01]\d|2[0-3]):[0-5]\d$`,
			},

			"patient_name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 120,
			},

			"patient_email": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 254,
			},

			"booked_by": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"booked_at": bson.M{
				"bsonType": "date",
			},

			"effective_moment": bson.M{
				"bsonType": "date",
			},
		},
	},
}
