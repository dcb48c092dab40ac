package nlu

// ModelVersion stamps the serialization format of persisted engines. Bump it
// whenever the directory layout or descriptor schema changes.
const ModelVersion = "0.20.0"

// TrainingPackageVersion identifies the library version that trained a
// persisted engine.
const TrainingPackageVersion = "0.1.0"
